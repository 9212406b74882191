package reagent

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory classifies adapter errors by how the caller should react.
type ErrorCategory string

const (
	// ErrorRateLimit indicates the upstream rejected the call for pacing
	// reasons and the same call can be retried after a delay.
	ErrorRateLimit ErrorCategory = "rate_limit"

	// ErrorFatal indicates the call cannot succeed by retrying.
	// Examples: invalid API key, malformed request, unreachable host.
	ErrorFatal ErrorCategory = "fatal"
)

// CategorizedError is an error carrying enough metadata for retry decisions.
type CategorizedError interface {
	error
	Category() ErrorCategory
	Retryable() bool           // true if Category == ErrorRateLimit
	StatusCode() int           // HTTP status code if applicable, 0 otherwise
	RetryAfter() time.Duration // server-suggested retry delay, 0 if absent
}

// Error is a categorized adapter error.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if absent
	Cause      error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Category returns the error category.
func (e *Error) Category() ErrorCategory { return e.Cat }

// Retryable returns true if the error is a rate limit.
func (e *Error) Retryable() bool { return e.Cat == ErrorRateLimit }

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int { return e.Code }

// RetryAfter returns the suggested retry delay, or 0 if not available.
func (e *Error) RetryAfter() time.Duration { return e.RetryDelay }

// NewRateLimitError creates a retryable rate-limit error.
func NewRateLimitError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorRateLimit, Code: statusCode, Cause: cause}
}

// NewRateLimitErrorWithRetry creates a rate-limit error with a server-suggested delay.
func NewRateLimitErrorWithRetry(msg string, statusCode int, retryAfter time.Duration, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorRateLimit, Code: statusCode, RetryDelay: retryAfter, Cause: cause}
}

// NewFatalError creates a non-retryable error.
func NewFatalError(msg string, statusCode int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorFatal, Code: statusCode, Cause: cause}
}

// IsRateLimit reports whether err (or any wrapped error) is a rate limit.
func IsRateLimit(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorRateLimit
	}
	return false
}

// IsFatal reports whether err (or any wrapped error) is categorized fatal.
func IsFatal(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorFatal
	}
	return false
}

// StatusCodeOf returns the HTTP status code from a categorized error, or 0.
func StatusCodeOf(err error) int {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	return 0
}

// RetryAfterOf returns the retry delay from a categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}
