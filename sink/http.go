package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/trace"
)

const httpSinkTimeout = 10 * time.Second

// HTTPSink pushes trace records to a collector service as each run
// progresses: POST /runs on start, POST /runs/{id}/steps per step, and
// POST /runs/{id}/finalize on end.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

// HTTPSinkOption configures an HTTPSink.
type HTTPSinkOption func(*HTTPSink)

// WithClient overrides the HTTP client. Used in tests.
func WithClient(c *http.Client) HTTPSinkOption {
	return func(s *HTTPSink) {
		s.client = c
	}
}

// NewHTTPSink creates a sink that pushes to the collector at baseURL.
func NewHTTPSink(baseURL string, opts ...HTTPSinkOption) *HTTPSink {
	s := &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: httpSinkTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type runStartPayload struct {
	RunID     string `json:"run_id"`
	Task      string `json:"task"`
	Model     string `json:"model"`
	Policy    string `json:"policy"`
	CreatedAt string `json:"created_at"`
}

type stepPayload struct {
	StepNo      int      `json:"step_no"`
	Thought     string   `json:"thought"`
	Action      string   `json:"action"`
	ActionInput string   `json:"action_input"`
	Observation string   `json:"observation"`
	Error       string   `json:"error"`
	LatencyS    float64  `json:"latency_s"`
	ModelUsage  ai.Usage `json:"model_usage"`
}

type finalizePayload struct {
	FinalAnswer string        `json:"final_answer"`
	Metrics     trace.Metrics `json:"metrics"`
}

// RunStart registers the run with the collector.
func (s *HTTPSink) RunStart(run *trace.Run) error {
	return s.post(s.baseURL+"/runs", runStartPayload{
		RunID:     run.RunID,
		Task:      run.Task,
		Model:     run.Model,
		Policy:    run.Policy,
		CreatedAt: run.CreatedAt,
	})
}

// EmitStep pushes one step record.
func (s *HTTPSink) EmitStep(runID string, step trace.Step) error {
	usage := step.Usage
	if usage == nil {
		usage = ai.Usage{}
	}
	return s.post(fmt.Sprintf("%s/runs/%s/steps", s.baseURL, runID), stepPayload{
		StepNo:      step.Step,
		Thought:     step.Thought,
		Action:      step.Action,
		ActionInput: step.ActionInput,
		Observation: step.Observation,
		Error:       step.Error,
		LatencyS:    step.ModelLatency.Seconds(),
		ModelUsage:  usage,
	})
}

// RunEnd finalizes the run at the collector.
func (s *HTTPSink) RunEnd(run *trace.Run) error {
	return s.post(fmt.Sprintf("%s/runs/%s/finalize", s.baseURL, run.RunID), finalizePayload{
		FinalAnswer: run.FinalAnswer,
		Metrics:     run.Metrics,
	})
}

func (s *HTTPSink) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sink push to %s failed: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

var _ Sink = (*HTTPSink)(nil)
