// Package openai adapts the OpenAI chat completions API to the
// reagent Adapter interface.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	ai "github.com/tracebound/reagent"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client wraps the OpenAI SDK to implement ai.Adapter.
type Client struct {
	client      *openai.Client
	model       string
	temperature *float64
	maxTokens   int
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithModel sets the model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = &t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the configured model identifier.
func (c *Client) Name() string {
	return c.model
}

// Chat sends a conversation and returns the completion text and usage.
func (c *Client) Chat(ctx context.Context, messages []ai.Message) (*ai.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(messages),
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	return &ai.Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: ai.Usage{
			ai.UsagePromptTokens:     int(resp.Usage.PromptTokens),
			ai.UsageCompletionTokens: int(resp.Usage.CompletionTokens),
			ai.UsageTotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func convertMessages(messages []ai.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case ai.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case ai.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

var _ ai.Adapter = (*Client)(nil)
