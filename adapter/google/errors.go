package google

import (
	"errors"

	"google.golang.org/genai"

	ai "github.com/tracebound/reagent"
)

// wrapError wraps a Google GenAI error with reagent error categorization.
// Note: genai.APIError does not expose headers, so Retry-After is not
// available here.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		// Not an API error, return as-is (likely network error, handled by heuristics)
		return err
	}

	code := apiErr.Code
	msg := err.Error()

	if code == 429 || (code >= 500 && code < 600) {
		return ai.NewRateLimitError(msg, code, err)
	}
	return ai.NewFatalError(msg, code, err)
}
