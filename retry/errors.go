package retry

import (
	"errors"
	"net"
	"net/url"
	"strings"

	ai "github.com/tracebound/reagent"
)

// statusCoder is an interface for errors that carry an HTTP status code.
// The Anthropic and OpenAI SDK errors both implement it.
type statusCoder interface {
	StatusCode() int
}

// IsRetryable determines whether an error should be retried. Explicitly
// categorized errors win: rate-limit is retryable, fatal is not. For
// uncategorized errors it falls back to heuristics: HTTP 429/5xx status
// codes, network timeouts, and common rate-limit message patterns.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ce ai.CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ai.ErrorRateLimit
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if isRetryableStatusCode(sc.StatusCode()) {
			return true
		}
	}

	if isRetryableNetworkError(err) {
		return true
	}

	return false
}

// isRetryableStatusCode reports whether an HTTP status code indicates a
// pacing or transient upstream condition.
func isRetryableStatusCode(code int) bool {
	if code == 429 {
		return true
	}
	if code >= 500 && code < 600 {
		return true
	}
	return false
}

// isRetryableNetworkError checks for transient network-level failures.
func isRetryableNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && isRetryableNetworkError(urlErr.Err) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"rate limit",
		"rate_limit",
		"too many requests",
		"overloaded",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
