package sink

import (
	"sync"

	"github.com/tracebound/reagent/trace"
)

// Recorder captures every notification in order. It is intended for
// tests and dry runs.
type Recorder struct {
	mu sync.Mutex

	Starts []trace.Run
	Steps  []trace.Step
	Ends   []trace.Run

	// Events lists notification names ("start", "step", "end") in the
	// order received, for asserting protocol ordering.
	Events []string

	// FailWith, when set, is returned from every notification.
	FailWith error
}

func (r *Recorder) RunStart(run *trace.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Starts = append(r.Starts, *run)
	r.Events = append(r.Events, "start")
	return r.FailWith
}

func (r *Recorder) EmitStep(_ string, step trace.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, step)
	r.Events = append(r.Events, "step")
	return r.FailWith
}

func (r *Recorder) RunEnd(run *trace.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ends = append(r.Ends, *run)
	r.Events = append(r.Events, "end")
	return r.FailWith
}

var _ Sink = (*Recorder)(nil)
