package sink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/trace"
)

func sealedRun(t *testing.T) *trace.Run {
	t.Helper()

	run := trace.NewRun("compute 12*7", "test-model", "default")
	require.NoError(t, run.Append(trace.Step{
		Step:         1,
		Thought:      "Multiply the numbers with the calculator.",
		Action:       "calculator",
		ActionInput:  "12*7",
		Observation:  "84",
		ModelLatency: 1500 * time.Millisecond,
		Usage:        ai.Usage{ai.UsageTotalTokens: 100},
	}))
	require.NoError(t, run.Append(trace.Step{
		Step:         2,
		Thought:      "I have the answer.",
		ModelLatency: 500 * time.Millisecond,
		Usage:        ai.Usage{ai.UsageTotalTokens: 40},
	}))
	require.NoError(t, run.Seal(trace.StatusFinalAnswer, "84"))
	return run
}

func TestFileSink_WritesArtifactsAtRunEnd(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	run := sealedRun(t)

	require.NoError(t, s.RunStart(run))
	require.NoError(t, s.EmitStep(run.RunID, run.Steps[0]))
	require.NoError(t, s.RunEnd(run))

	data, err := os.ReadFile(filepath.Join(dir, run.RunID, "trace.json"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "compute 12*7", decoded["task"])
	assert.Equal(t, "final_answer", decoded["status"])

	html, err := os.ReadFile(filepath.Join(dir, run.RunID, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "compute 12*7")
	assert.Contains(t, string(html), "calculator")
	assert.Contains(t, string(html), "Step 1")
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	run := trace.NewRun("<script>alert(1)</script>", "m", "p")
	require.NoError(t, run.Seal(trace.StatusFinalAnswer, "done"))

	html, err := RenderHTML(run)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>alert(1)</script>")
	assert.Contains(t, string(html), "&lt;script&gt;")
}

func TestHTTPSink_PushesWireShapes(t *testing.T) {
	var gotPaths []string
	var stepBody, startBody, finalBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.Method+" "+r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch {
		case r.URL.Path == "/runs":
			startBody = body
		case len(r.URL.Path) > 5 && r.URL.Path[len(r.URL.Path)-6:] == "/steps":
			stepBody = body
		default:
			finalBody = body
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, WithClient(srv.Client()))
	run := sealedRun(t)

	require.NoError(t, s.RunStart(run))
	require.NoError(t, s.EmitStep(run.RunID, run.Steps[0]))
	require.NoError(t, s.RunEnd(run))

	require.Equal(t, []string{
		"POST /runs",
		"POST /runs/" + run.RunID + "/steps",
		"POST /runs/" + run.RunID + "/finalize",
	}, gotPaths)

	assert.Equal(t, run.RunID, startBody["run_id"])
	assert.Equal(t, "compute 12*7", startBody["task"])
	assert.Equal(t, "test-model", startBody["model"])
	assert.Equal(t, "default", startBody["policy"])
	assert.NotEmpty(t, startBody["created_at"])

	assert.Equal(t, float64(1), stepBody["step_no"])
	assert.Equal(t, "calculator", stepBody["action"])
	assert.Equal(t, "12*7", stepBody["action_input"])
	assert.Equal(t, "84", stepBody["observation"])
	assert.InDelta(t, 1.5, stepBody["latency_s"], 0.001)

	assert.Equal(t, "84", finalBody["final_answer"])
	metrics, ok := finalBody["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(140), metrics["total_tokens"])
	assert.Equal(t, float64(1), metrics["tool_calls"])
}

func TestHTTPSink_SurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, WithClient(srv.Client()))
	err := s.RunStart(sealedRun(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	failing := &Recorder{FailWith: fmt.Errorf("boom")}
	healthy := &Recorder{}
	m := Multi{failing, healthy}
	run := sealedRun(t)

	err := m.RunStart(run)
	require.Error(t, err)
	assert.Len(t, healthy.Starts, 1, "later sinks still notified")
}
