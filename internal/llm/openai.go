package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator implements TextGenerator against an OpenAI-compatible chat
// completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator against api.openai.com.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewOpenAIGeneratorWithBaseURL creates a generator against a custom
// OpenAI-compatible endpoint (e.g. a local inference server).
func NewOpenAIGeneratorWithBaseURL(apiKey, model, baseURL string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the prompt as a single user message and returns the first
// choice's content.
func (g *OpenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("llm: completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (g *OpenAIGenerator) GetModel() string {
	return g.model
}
