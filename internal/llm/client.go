package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when LLM features are used without an
// API key.
var ErrNotConfigured = errors.New("llm api key is not configured")

// Client wraps the chat-completions API. Setting a base URL points it
// at any OpenAI-compatible gateway (OpenRouter, a local server) without
// code changes.
type Client struct {
	api         *openai.Client
	model       string
	temperature float64
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

func NewClient(opts Options) *Client {
	c := &Client{model: opts.Model, temperature: opts.Temperature}
	if opts.APIKey == "" {
		return c
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

func (c *Client) IsConfigured() bool { return c.api != nil }

// Usage reports token consumption for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Complete sends one system+user exchange and returns the assistant
// text. model overrides the configured default when non-empty.
func (c *Client) Complete(ctx context.Context, system, user, model string) (string, Usage, error) {
	if c.api == nil {
		return "", Usage{}, ErrNotConfigured
	}
	if model == "" {
		model = c.model
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(c.temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("chat completion returned no choices")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
