package llm

import (
	"context"
	"errors"
)

// Result carries one completed generation with its token accounting.
type Result struct {
	Text         string
	InputTokens  uint64
	OutputTokens uint64
	TotalTokens  uint64
}

// Backend is the text-generation capability the gateway fronts. Any
// failure — timeout, quota, malformed input — surfaces as a plain
// error; the gateway does not distinguish failure kinds.
type Backend interface {
	Generate(ctx context.Context, prompt string) (*Result, error)
}

var ErrBackendUnavailable = errors.New("llm backend not configured")

// Disabled is the backend used when no model credentials are present.
// Every call fails, so the gateway still serves its dashboard while
// chat requests report a clean error.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (*Result, error) {
	return nil, ErrBackendUnavailable
}
