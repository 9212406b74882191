package trace

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/tracebound/reagent"
)

func TestRun_AppendContiguous(t *testing.T) {
	r := NewRun("test task", "mock", "v1")

	require.NoError(t, r.Append(Step{Step: 1, Thought: "first"}))
	require.NoError(t, r.Append(Step{Step: 2, Thought: "second"}))

	for i, s := range r.Steps {
		assert.Equal(t, i+1, s.Step)
	}
}

func TestRun_AppendRejectsGap(t *testing.T) {
	r := NewRun("test task", "mock", "v1")

	require.NoError(t, r.Append(Step{Step: 1}))
	err := r.Append(Step{Step: 3})
	assert.Error(t, err)
	assert.Len(t, r.Steps, 1)
}

func TestRun_SealOnce(t *testing.T) {
	r := NewRun("test task", "mock", "v1")
	require.NoError(t, r.Append(Step{Step: 1, Thought: "done"}))

	require.NoError(t, r.Seal(StatusFinalAnswer, "42"))
	assert.Equal(t, StatusFinalAnswer, r.Status)
	assert.Equal(t, "42", r.FinalAnswer)
	require.NotNil(t, r.EndTime)

	assert.Error(t, r.Seal(StatusFinalAnswer, "43"), "second seal must fail")
	assert.Error(t, r.Append(Step{Step: 2}), "append after seal must fail")
}

func TestRun_SealRejectsNonTerminal(t *testing.T) {
	r := NewRun("test task", "mock", "v1")
	assert.Error(t, r.Seal(StatusRunning, ""))
}

func TestComputeMetrics(t *testing.T) {
	steps := []Step{
		{
			Step:         1,
			Action:       "calculator",
			ModelLatency: 2 * time.Second,
			ToolLatency:  500 * time.Millisecond,
			Usage:        ai.Usage{ai.UsageTotalTokens: 100},
		},
		{
			Step:         2,
			Action:       "write_file",
			Error:        "permission denied",
			ModelLatency: 1 * time.Second,
			Usage:        ai.Usage{ai.UsagePromptTokens: 30, ai.UsageCompletionTokens: 20},
		},
		{
			Step:         3,
			Thought:      "I have the answer",
			ModelLatency: 500 * time.Millisecond,
		},
	}

	m := ComputeMetrics(steps)
	assert.Equal(t, 150, m.TotalTokens)
	assert.Equal(t, 2, m.ToolCalls)
	assert.Equal(t, 1, m.Errors)
	assert.InDelta(t, 4.0, m.TotalLatencyS, 1e-9)
}

func TestStep_JSONShape(t *testing.T) {
	s := Step{
		Step:         1,
		Thought:      "compute it",
		Action:       "calculator",
		ActionInput:  "12*7",
		Observation:  "84",
		ModelLatency: 1500 * time.Millisecond,
		ToolLatency:  250 * time.Millisecond,
		Usage:        ai.Usage{ai.UsageTotalTokens: 10},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.InDelta(t, 1.5, raw["latency_s"], 1e-9)
	assert.InDelta(t, 0.25, raw["tool_latency_s"], 1e-9)
	assert.Equal(t, "calculator", raw["action"])

	var back Step
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.Step, back.Step)
	assert.Equal(t, s.ModelLatency, back.ModelLatency)
}

func TestNewRun_Identity(t *testing.T) {
	a := NewRun("t", "m", "p")
	b := NewRun("t", "m", "p")
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, StatusRunning, a.Status)
}
