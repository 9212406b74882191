// Package trace holds the immutable history of one engine run: the ordered
// step records, the derived metrics, and the secret redaction applied to
// thoughts before they are stored.
package trace

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	ai "github.com/tracebound/reagent"
)

// Status is the lifecycle state of a run. A run starts running and is
// sealed exactly once with one of the three terminal statuses.
type Status string

const (
	StatusRunning            Status = "running"
	StatusFinalAnswer        Status = "final_answer"
	StatusMaxStepsExceeded   Status = "max_steps_exceeded"
	StatusUnrecoverableError Status = "unrecoverable_error"
)

// Terminal reports whether s is one of the three terminal statuses.
func (s Status) Terminal() bool {
	return s == StatusFinalAnswer || s == StatusMaxStepsExceeded || s == StatusUnrecoverableError
}

// Step records one loop iteration: either a tool-dispatch iteration or the
// terminal answer iteration (in which Action, ActionInput and Observation
// are empty).
type Step struct {
	// Step is the 1-based index; indices are contiguous with no gaps.
	Step int

	// Thought is the model's free-text reasoning, redacted before storage.
	Thought string

	Action      string
	ActionInput string
	Observation string
	Error       string

	ModelLatency time.Duration
	ToolLatency  time.Duration

	// Usage holds the named token counters reported for this step's
	// model call. May be empty.
	Usage ai.Usage
}

// stepJSON is the serialized shape of a Step. Latencies are emitted in
// seconds to match the step wire contract.
type stepJSON struct {
	Step        int      `json:"step"`
	Thought     string   `json:"thought"`
	Action      string   `json:"action,omitempty"`
	ActionInput string   `json:"action_input,omitempty"`
	Observation string   `json:"observation,omitempty"`
	Error       string   `json:"error,omitempty"`
	LatencyS    float64  `json:"latency_s"`
	ToolLatency float64  `json:"tool_latency_s"`
	ModelUsage  ai.Usage `json:"model_usage,omitempty"`
}

// MarshalJSON serializes the step with latencies in seconds.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{
		Step:        s.Step,
		Thought:     s.Thought,
		Action:      s.Action,
		ActionInput: s.ActionInput,
		Observation: s.Observation,
		Error:       s.Error,
		LatencyS:    s.ModelLatency.Seconds(),
		ToolLatency: s.ToolLatency.Seconds(),
		ModelUsage:  s.Usage,
	})
}

// UnmarshalJSON restores a step serialized by MarshalJSON.
func (s *Step) UnmarshalJSON(data []byte) error {
	var v stepJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Step{
		Step:         v.Step,
		Thought:      v.Thought,
		Action:       v.Action,
		ActionInput:  v.ActionInput,
		Observation:  v.Observation,
		Error:        v.Error,
		ModelLatency: time.Duration(v.LatencyS * float64(time.Second)),
		ToolLatency:  time.Duration(v.ToolLatency * float64(time.Second)),
		Usage:        v.ModelUsage,
	}
	return nil
}

// Metrics are aggregates derived from the step sequence. They are always
// recomputable from the steps and never independently mutated.
type Metrics struct {
	TotalTokens   int     `json:"total_tokens"`
	ToolCalls     int     `json:"tool_calls"`
	Errors        int     `json:"errors"`
	TotalLatencyS float64 `json:"total_latency_s"`
}

// Run is the record of one task execution. The engine exclusively owns the
// run for the duration of one Run() call and mutates it only by appending
// steps in order; sinks receive it as a read-only snapshot reference.
type Run struct {
	Task      string `json:"task"`
	RunID     string `json:"run_id"`
	Model     string `json:"model"`
	Policy    string `json:"policy"`
	CreatedAt string `json:"created_at"`

	// CaseID links a batch-evaluation case to this run, if any.
	CaseID string `json:"case_id,omitempty"`

	Steps       []Step  `json:"steps"`
	FinalAnswer string  `json:"final_answer,omitempty"`
	Status      Status  `json:"status"`
	Metrics     Metrics `json:"metrics"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// NewRun creates a run for the given task with a fresh run ID, stamped
// with the current time.
func NewRun(task, model, policy string) *Run {
	now := time.Now()
	return &Run{
		Task:      task,
		RunID:     uuid.NewString()[:8],
		Model:     model,
		Policy:    policy,
		CreatedAt: now.Format("2006-01-02 15:04:05"),
		Status:    StatusRunning,
		StartTime: now,
	}
}

// Append adds the next step. Step indices must be contiguous from 1 and
// the run must not be sealed.
func (r *Run) Append(step Step) error {
	if r.Status.Terminal() {
		return fmt.Errorf("trace: run %s already sealed", r.RunID)
	}
	if want := len(r.Steps) + 1; step.Step != want {
		return fmt.Errorf("trace: step index %d, want %d", step.Step, want)
	}
	r.Steps = append(r.Steps, step)
	return nil
}

// Seal fixes the terminal status, recomputes metrics from the step
// sequence and stamps the end time. Sealing twice is an error.
func (r *Run) Seal(status Status, finalAnswer string) error {
	if !status.Terminal() {
		return fmt.Errorf("trace: cannot seal with non-terminal status %q", status)
	}
	if r.Status.Terminal() {
		return fmt.Errorf("trace: run %s already sealed", r.RunID)
	}
	r.Status = status
	r.FinalAnswer = finalAnswer
	r.Metrics = ComputeMetrics(r.Steps)
	now := time.Now()
	r.EndTime = &now
	return nil
}

// ComputeMetrics derives the aggregate metrics from a step sequence.
func ComputeMetrics(steps []Step) Metrics {
	var m Metrics
	for _, s := range steps {
		m.TotalTokens += s.Usage.Total()
		if s.Action != "" {
			m.ToolCalls++
		}
		if s.Error != "" {
			m.Errors++
		}
		m.TotalLatencyS += s.ModelLatency.Seconds() + s.ToolLatency.Seconds()
	}
	return m
}

// ToJSON serializes the full run, indented.
func (r *Run) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
