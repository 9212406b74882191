package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestScripted_PlaysTurnsInOrder(t *testing.T) {
	s := NewScripted("test-model",
		Turn{Text: "first"},
		Turn{Text: "second"},
	)

	c1, err := s.Chat(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "first", c1.Text)

	c2, err := s.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", c2.Text)

	// Exhausted scripts repeat the last turn.
	c3, err := s.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", c3.Text)

	assert.Equal(t, 3, s.Calls())
	assert.Len(t, s.Requests, 3)
	assert.Equal(t, "hi", s.Requests[0][0].Content)
}

func TestWithRetry_RetriesRateLimit(t *testing.T) {
	s := NewScripted("test-model",
		Turn{Err: ai.NewRateLimitError("slow down", 429, nil)},
		Turn{Text: "recovered"},
	)
	r := WithRetry(s, fastRetry())

	c, err := r.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", c.Text)
	assert.Equal(t, 2, s.Calls())
	assert.Equal(t, "test-model", r.Name())
}

func TestWithRetry_FatalSurfacesImmediately(t *testing.T) {
	s := NewScripted("test-model",
		Turn{Err: ai.NewFatalError("bad api key", 401, nil)},
		Turn{Text: "never reached"},
	)
	r := WithRetry(s, fastRetry())

	_, err := r.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, ai.IsFatal(err))
	assert.Equal(t, 1, s.Calls())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), "aol", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(context.Background(), "openai", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
