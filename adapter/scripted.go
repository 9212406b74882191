package adapter

import (
	"context"
	"sync"

	ai "github.com/tracebound/reagent"
)

// Turn is one scripted model response: either a completion or an error.
type Turn struct {
	Text  string
	Usage ai.Usage
	Err   error
}

// Scripted replays a fixed sequence of turns. It is the deterministic
// adapter used by tests and by dry runs; after the script is exhausted
// every further call repeats the last turn.
type Scripted struct {
	mu    sync.Mutex
	name  string
	turns []Turn
	calls int

	// Requests records the message history passed to each Chat call.
	Requests [][]ai.Message
}

// NewScripted creates a scripted adapter that plays the given turns in
// order.
func NewScripted(name string, turns ...Turn) *Scripted {
	return &Scripted{name: name, turns: turns}
}

// Name returns the scripted model identifier.
func (s *Scripted) Name() string {
	return s.name
}

// Calls reports how many times Chat has been invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Chat returns the next scripted turn.
func (s *Scripted) Chat(_ context.Context, messages []ai.Message) (*ai.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]ai.Message, len(messages))
	copy(copied, messages)
	s.Requests = append(s.Requests, copied)

	idx := s.calls
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	}
	s.calls++

	if len(s.turns) == 0 {
		return &ai.Completion{}, nil
	}
	t := s.turns[idx]
	if t.Err != nil {
		return nil, t.Err
	}
	usage := t.Usage
	if usage == nil {
		usage = ai.Usage{}
	}
	return &ai.Completion{Text: t.Text, Usage: usage}, nil
}

var _ ai.Adapter = (*Scripted)(nil)
