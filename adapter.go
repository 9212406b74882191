package reagent

import "context"

// Adapter is the uniform interface over a model call: an ordered message
// list in, text plus usage metadata out.
//
// Implementations classify failures as rate-limit (retryable) or fatal via
// [CategorizedError]; see the adapter subpackages for the concrete
// providers. Provider selection happens at construction time, never by
// runtime string dispatch.
type Adapter interface {
	// Chat sends the conversation and returns the model's completion.
	Chat(ctx context.Context, messages []Message) (*Completion, error)

	// Name returns a stable model identity string for provenance.
	Name() string
}
