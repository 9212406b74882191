// Package sink delivers trace records to observation backends. A sink
// receives run lifecycle notifications from the engine in strict order:
// RunStart once, EmitStep per step in step order, RunEnd once after the
// run is sealed.
//
// Sink failures never abort a run. The engine logs delivery errors and
// keeps stepping; the in-memory trace stays authoritative.
package sink

import (
	"github.com/tracebound/reagent/trace"
)

// Sink receives run lifecycle notifications.
type Sink interface {
	// RunStart is called exactly once, before any step executes.
	RunStart(run *trace.Run) error

	// EmitStep is called after each step, in step order.
	EmitStep(runID string, step trace.Step) error

	// RunEnd is called exactly once, after the run is sealed.
	RunEnd(run *trace.Run) error
}

// Multi fans every notification out to all member sinks. Delivery
// continues past individual failures; the first error is returned.
type Multi []Sink

// RunStart notifies every member sink.
func (m Multi) RunStart(run *trace.Run) error {
	var first error
	for _, s := range m {
		if err := s.RunStart(run); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EmitStep notifies every member sink.
func (m Multi) EmitStep(runID string, step trace.Step) error {
	var first error
	for _, s := range m {
		if err := s.EmitStep(runID, step); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RunEnd notifies every member sink.
func (m Multi) RunEnd(run *trace.Run) error {
	var first error
	for _, s := range m {
		if err := s.RunEnd(run); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard is a no-op sink.
type Discard struct{}

func (Discard) RunStart(*trace.Run) error         { return nil }
func (Discard) EmitStep(string, trace.Step) error { return nil }
func (Discard) RunEnd(*trace.Run) error           { return nil }

var (
	_ Sink = Multi(nil)
	_ Sink = Discard{}
)
