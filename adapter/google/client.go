// Package google adapts the Google GenAI API to the reagent Adapter
// interface.
package google

import (
	"context"

	"google.golang.org/genai"

	ai "github.com/tracebound/reagent"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Client wraps the Google GenAI SDK to implement ai.Adapter.
type Client struct {
	client      *genai.Client
	model       string
	temperature *float64
	maxTokens   int
}

// ClientOption configures the Google client.
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

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the configured model identifier.
func (c *Client) Name() string {
	return c.model
}

// Chat sends a conversation and returns the completion text and usage.
func (c *Client) Chat(ctx context.Context, messages []ai.Message) (*ai.Completion, error) {
	contents, system := convertMessages(messages)

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if c.temperature != nil {
		temp := float32(*c.temperature)
		config.Temperature = &temp
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = int32(c.maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}

	text := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}

	usage := ai.Usage{}
	if resp.UsageMetadata != nil {
		in := int(resp.UsageMetadata.PromptTokenCount)
		out := int(resp.UsageMetadata.CandidatesTokenCount)
		usage[ai.UsagePromptTokens] = in
		usage[ai.UsageCompletionTokens] = out
		usage[ai.UsageTotalTokens] = in + out
	}

	return &ai.Completion{Text: text, Usage: usage}, nil
}

// convertMessages maps reagent roles onto genai contents. System messages
// are concatenated into a single system instruction since Gemini carries
// them outside the turn list.
func convertMessages(messages []ai.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	system := ""

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case ai.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case ai.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	return contents, system
}

var _ ai.Adapter = (*Client)(nil)
