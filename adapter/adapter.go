// Package adapter constructs concrete model adapters and provides
// cross-provider wrappers. The provider is chosen once at construction;
// there is no runtime dispatch on provider names after that.
package adapter

import (
	"context"
	"fmt"
	"os"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/adapter/anthropic"
	"github.com/tracebound/reagent/adapter/google"
	"github.com/tracebound/reagent/adapter/openai"
	"github.com/tracebound/reagent/retry"
)

// Options configure adapter construction.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// New builds an adapter for the named provider ("openai", "anthropic",
// or "google"), reading the API key from the provider's conventional
// environment variable. The returned adapter is wrapped with the
// default retry policy.
func New(ctx context.Context, provider string, opts Options) (ai.Adapter, error) {
	inner, err := newProvider(ctx, provider, opts)
	if err != nil {
		return nil, err
	}
	return WithRetry(inner, retry.DefaultConfig()), nil
}

func newProvider(ctx context.Context, provider string, opts Options) (ai.Adapter, error) {
	switch provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		var copts []openai.ClientOption
		if opts.Model != "" {
			copts = append(copts, openai.WithModel(opts.Model))
		}
		if opts.Temperature != nil {
			copts = append(copts, openai.WithTemperature(*opts.Temperature))
		}
		if opts.MaxTokens > 0 {
			copts = append(copts, openai.WithMaxTokens(opts.MaxTokens))
		}
		return openai.New(key, copts...), nil

	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		var copts []anthropic.ClientOption
		if opts.Model != "" {
			copts = append(copts, anthropic.WithModel(opts.Model))
		}
		if opts.Temperature != nil {
			copts = append(copts, anthropic.WithTemperature(*opts.Temperature))
		}
		if opts.MaxTokens > 0 {
			copts = append(copts, anthropic.WithMaxTokens(opts.MaxTokens))
		}
		return anthropic.New(key, copts...), nil

	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
		}
		var copts []google.ClientOption
		if opts.Model != "" {
			copts = append(copts, google.WithModel(opts.Model))
		}
		if opts.Temperature != nil {
			copts = append(copts, google.WithTemperature(*opts.Temperature))
		}
		if opts.MaxTokens > 0 {
			copts = append(copts, google.WithMaxTokens(opts.MaxTokens))
		}
		return google.New(ctx, key, copts...)

	default:
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}
}

// Retrying wraps an adapter so that every Chat call runs under a retry
// policy. Rate-limit errors are retried with exponential backoff; fatal
// errors surface immediately.
type Retrying struct {
	inner ai.Adapter
	cfg   retry.Config
}

// WithRetry wraps an adapter with the given retry configuration.
func WithRetry(inner ai.Adapter, cfg retry.Config) *Retrying {
	return &Retrying{inner: inner, cfg: cfg}
}

// Name returns the wrapped adapter's model identifier.
func (r *Retrying) Name() string {
	return r.inner.Name()
}

// Chat delegates to the wrapped adapter under the retry policy.
func (r *Retrying) Chat(ctx context.Context, messages []ai.Message) (*ai.Completion, error) {
	return retry.Do(ctx, r.cfg, func() (*ai.Completion, error) {
		return r.inner.Chat(ctx, messages)
	})
}

var _ ai.Adapter = (*Retrying)(nil)
