package stats

import "sync"

// promptPreviewLimit bounds how much of a prompt is retained for display.
const promptPreviewLimit = 50

// Snapshot is a point-in-time copy of the gateway's aggregate counters.
// Field names match the dashboard wire format.
type Snapshot struct {
	RequestsFromUser  uint64 `json:"requests_from_user"`
	ResponsesFromLLM  uint64 `json:"responses_from_llm"`
	Errors            uint64 `json:"errors"`
	LastPrompt        string `json:"last_prompt"`
	TotalInputTokens  uint64 `json:"total_input_tokens"`
	TotalOutputTokens uint64 `json:"total_output_tokens"`
	TotalTokens       uint64 `json:"total_tokens_used"`
}

// Store owns the gateway's aggregate usage counters. All mutations go
// through the record methods; readers only ever get copies via Snapshot,
// so a snapshot is always internally consistent.
type Store struct {
	mu      sync.Mutex
	current Snapshot
}

// NewStore returns a zeroed store. The last-prompt preview starts as
// "None" until the first request arrives.
func NewStore() *Store {
	return &Store{current: Snapshot{LastPrompt: "None"}}
}

// RecordRequest counts one inbound prompt and retains a truncated
// preview of it. The preview is a prefix of the original, never a
// summary.
func (s *Store) RecordRequest(prompt string) {
	preview := TruncatePreview(prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.RequestsFromUser++
	s.current.LastPrompt = preview
}

// RecordResponse counts one successful backend response and accumulates
// its token usage.
func (s *Store) RecordResponse(inputTokens, outputTokens, totalTokens uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.ResponsesFromLLM++
	s.current.TotalInputTokens += inputTokens
	s.current.TotalOutputTokens += outputTokens
	s.current.TotalTokens += totalTokens
}

// RecordError counts one failed backend call.
func (s *Store) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Errors++
}

// Snapshot returns a consistent copy of the current counters.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TruncatePreview shortens a prompt to the preview limit, counting
// runes so multi-byte text is never cut mid-character.
func TruncatePreview(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptPreviewLimit {
		return prompt
	}
	return string(runes[:promptPreviewLimit])
}
