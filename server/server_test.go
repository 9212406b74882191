package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/sink"
	"github.com/tracebound/reagent/trace"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "obs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(New(store, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, client *http.Client, url string, out any) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServer_FullSinkLifecycle(t *testing.T) {
	srv := testServer(t)

	run := trace.NewRun("compute 6*7", "test-model", "v1")
	require.NoError(t, run.Append(trace.Step{
		Step:         1,
		Thought:      "multiply",
		Action:       "calculator",
		ActionInput:  "6*7",
		Observation:  "42",
		ModelLatency: 800 * time.Millisecond,
		Usage:        ai.Usage{ai.UsageTotalTokens: 90},
	}))
	require.NoError(t, run.Seal(trace.StatusFinalAnswer, "42"))

	// Drive the server through the same HTTP sink the engine uses.
	s := sink.NewHTTPSink(srv.URL, sink.WithClient(srv.Client()))
	require.NoError(t, s.RunStart(run))
	require.NoError(t, s.EmitStep(run.RunID, run.Steps[0]))
	require.NoError(t, s.RunEnd(run))

	var runs []map[string]any
	code := getJSON(t, srv.Client(), srv.URL+"/runs", &runs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0]["run_id"])
	assert.Equal(t, "done", runs[0]["status"])

	var detail struct {
		Run   RunRecord    `json:"run"`
		Steps []StepRecord `json:"steps"`
	}
	code = getJSON(t, srv.Client(), srv.URL+"/runs/"+run.RunID, &detail)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "compute 6*7", detail.Run.Task)
	assert.Equal(t, "42", detail.Run.FinalAnswer)
	require.Len(t, detail.Steps, 1)
	assert.Equal(t, 1, detail.Steps[0].StepNo)
	assert.Equal(t, "calculator", detail.Steps[0].Action)
	assert.InDelta(t, 0.8, detail.Steps[0].LatencyS, 0.001)

	var metrics map[string]any
	require.NoError(t, json.Unmarshal(detail.Run.Metrics, &metrics))
	assert.Equal(t, float64(90), metrics["total_tokens"])
}

func TestServer_GetUnknownRun(t *testing.T) {
	srv := testServer(t)

	var body map[string]string
	code := getJSON(t, srv.Client(), srv.URL+"/runs/nope", &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "run not found", body["error"])
}

func TestServer_FinalizeUnknownRun(t *testing.T) {
	srv := testServer(t)

	resp, err := srv.Client().Post(srv.URL+"/runs/nope/finalize", "application/json",
		jsonBody(`{"final_answer":"x","metrics":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CreateRunRequiresID(t *testing.T) {
	srv := testServer(t)

	resp, err := srv.Client().Post(srv.URL+"/runs", "application/json",
		jsonBody(`{"task":"no id"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ListRunsEmpty(t *testing.T) {
	srv := testServer(t)

	var runs []RunRecord
	code := getJSON(t, srv.Client(), srv.URL+"/runs", &runs)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, runs)
}
