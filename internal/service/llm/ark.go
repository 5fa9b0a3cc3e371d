package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tamerwork/llm-gateway/internal/config"
	"github.com/tamerwork/llm-gateway/internal/stats"
)

// ArkBackend generates completions through a Volcengine Ark chat model
// behind an eino chain.
type ArkBackend struct {
	systemPrompt string
	chain        compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBackend builds the chat model from configuration and compiles
// the single-turn prompt chain around it.
func NewArkBackend(ctx context.Context, cfg config.AIConfig) (*ArkBackend, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkBackend{
		systemPrompt: cfg.SystemPrompt,
		chain:        runnable,
	}, nil
}

// Generate runs one prompt through the chain and reports the model's
// token usage alongside the output text.
func (b *ArkBackend) Generate(ctx context.Context, promptText string) (*Result, error) {
	response, err := b.chain.Invoke(ctx, map[string]any{
		"system": b.systemPrompt,
		"query":  promptText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}

	result := &Result{Text: response.Content}
	if meta := response.ResponseMeta; meta != nil && meta.Usage != nil {
		result.InputTokens = uint64(meta.Usage.PromptTokens)
		result.OutputTokens = uint64(meta.Usage.CompletionTokens)
		result.TotalTokens = uint64(meta.Usage.TotalTokens)
	}

	log.Printf("[llm] generated response prompt=%q length=%d tokens=%d",
		stats.TruncatePreview(promptText), len(result.Text), result.TotalTokens)
	return result, nil
}
