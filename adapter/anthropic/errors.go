package anthropic

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	ai "github.com/tracebound/reagent"
)

// wrapError wraps an Anthropic SDK error with reagent error
// categorization. It extracts status codes and Retry-After headers for
// retry handling.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Not an API error, return as-is (likely network error, handled by heuristics)
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()

	if code == 429 || (code >= 500 && code < 600) {
		if retryAfter := parseRetryAfter(apiErr.Response); retryAfter > 0 {
			return ai.NewRateLimitErrorWithRetry(msg, code, retryAfter, err)
		}
		return ai.NewRateLimitError(msg, code, err)
	}
	return ai.NewFatalError(msg, code, err)
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

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return 0
}
