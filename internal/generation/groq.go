package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/groq-go"
)

const DefaultGroqModel = "llama-3.3-70b-versatile"

var _ Generator = (*GroqGenerator)(nil)

// GroqGenerator uses JSON mode; the schema travels in the system
// instruction's example output.
type GroqGenerator struct {
	client *groq.Client
	model  groq.ChatModel
}

func NewGroqGenerator(apiKey, model string) (*GroqGenerator, error) {
	if model == "" {
		model = DefaultGroqModel
	}

	client, err := groq.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &GroqGenerator{client: client, model: groq.ChatModel(model)}, nil
}

func (g *GroqGenerator) Name() string {
	return "groq"
}

func (g *GroqGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: g.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: req.SystemInstruction},
			{Role: groq.RoleUser, Content: req.Prompt},
		},
		ResponseFormat: &groq.ChatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		if isGroqRateLimit(err) {
			return "", &RateLimitError{Err: err}
		}
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response")
	}
	return content, nil
}

func isGroqRateLimit(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota_exceeded")
}
