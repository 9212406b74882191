package openai

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"

	ai "github.com/tracebound/reagent"
)

// wrapError wraps an OpenAI SDK error with reagent error categorization.
// It extracts status codes and Retry-After headers for retry handling.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Not an API error, return as-is (likely network error, handled by heuristics)
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()

	if isRateLimitStatus(code) {
		if retryAfter := parseRetryAfter(apiErr.Response); retryAfter > 0 {
			return ai.NewRateLimitErrorWithRetry(msg, code, retryAfter, err)
		}
		return ai.NewRateLimitError(msg, code, err)
	}
	return ai.NewFatalError(msg, code, err)
}

// isRateLimitStatus reports whether a status code indicates a pacing or
// transient upstream condition worth retrying.
func isRateLimitStatus(code int) bool {
	return code == 429 || (code >= 500 && code < 600)
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is not present or cannot be parsed.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	// Try parsing as seconds (most common)
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date (RFC 7231)
	if t, err := http.ParseTime(header); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return 0
}
