package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/tracebound/reagent"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRateLimit(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", ai.NewRateLimitError("rate limited", 429, nil)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "", ai.NewRateLimitError("rate limited", 429, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, ai.IsRateLimit(err), "last error surfaces after exhaustion")
}

func TestDo_FatalNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "", ai.NewFatalError("bad api key", 401, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2.0}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, func() (int, error) {
			return 0, ai.NewRateLimitError("rate limited", 429, nil)
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"rate limit category", ai.NewRateLimitError("slow down", 429, nil), true},
		{"fatal category", ai.NewFatalError("unauthorized", 401, nil), false},
		{"status 429", &statusErr{429}, true},
		{"status 503", &statusErr{503}, true},
		{"status 400", &statusErr{400}, false},
		{"message pattern", errors.New("upstream: too many requests"), true},
		{"plain error", errors.New("parse failure"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestConfig_Delay(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0}

	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	assert.Equal(t, 10*time.Second, cfg.Delay(10), "capped at MaxDelay")
	assert.Equal(t, time.Second, cfg.Delay(-1), "negative clamps to 0")
}
