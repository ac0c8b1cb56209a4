// Package llm provides the LLM fallback for intent classification and
// response phrasing. Every failure mode here is soft: callers always get a
// usable rule-based result back.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Backend abstracts the LLM provider. Both methods may fail with timeout,
// rate-limit, or API errors; callers must degrade gracefully.
type Backend interface {
	// Classify sends a classification prompt and returns the raw text reply.
	Classify(ctx context.Context, prompt string) (string, error)

	// Generate produces free-form text from a system and user prompt,
	// returning the reply and the completion token count.
	Generate(ctx context.Context, system, user string) (string, int, error)
}

// OpenAIBackend implements Backend on the OpenAI chat completion API.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// OpenAIOpts holds parameters for creating an OpenAIBackend.
type OpenAIOpts struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewOpenAI creates an OpenAIBackend.
func NewOpenAI(opts OpenAIOpts) (*OpenAIBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	return &OpenAIBackend{
		client:      openai.NewClient(opts.APIKey),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: float32(opts.Temperature),
	}, nil
}

// Classify implements Backend.
func (b *OpenAIBackend) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: classify: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate implements Backend.
func (b *OpenAIBackend) Generate(ctx context.Context, system, user string) (string, int, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", 0, fmt.Errorf("llm: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("llm: generate: empty response")
	}
	return resp.Choices[0].Message.Content, resp.Usage.CompletionTokens, nil
}
