// Package server is the trace collector: it accepts the HTTP sink's
// push protocol, persists runs and steps in SQLite, and serves them
// back for inspection.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server exposes the collector's REST API over a Store.
type Server struct {
	store *Store
	log   zerolog.Logger
	mux   *http.ServeMux
}

// New creates a collector server backed by the given store.
func New(store *Store, log zerolog.Logger) *Server {
	s := &Server{
		store: store,
		log:   log,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /runs", s.handleCreateRun)
	s.mux.HandleFunc("POST /runs/{id}/steps", s.handlePushStep)
	s.mux.HandleFunc("POST /runs/{id}/finalize", s.handleFinalize)
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	return s
}

// ServeHTTP implements http.Handler with request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("elapsed", time.Since(start)).
		Msg("request")
}

type createRunRequest struct {
	RunID     string `json:"run_id"`
	Task      string `json:"task"`
	Model     string `json:"model"`
	Policy    string `json:"policy"`
	CreatedAt string `json:"created_at"`
}

type pushStepRequest struct {
	StepNo      int             `json:"step_no"`
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput string          `json:"action_input"`
	Observation string          `json:"observation"`
	Error       string          `json:"error"`
	LatencyS    float64         `json:"latency_s"`
	ModelUsage  json.RawMessage `json:"model_usage"`
}

type finalizeRequest struct {
	FinalAnswer string          `json:"final_answer"`
	Metrics     json.RawMessage `json:"metrics"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RunID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	if err := s.store.InsertRun(RunRecord{
		RunID:     req.RunID,
		Task:      req.Task,
		Model:     req.Model,
		Policy:    req.Policy,
		CreatedAt: req.CreatedAt,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "run_id": req.RunID})
}

func (s *Server) handlePushStep(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	var req pushStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.InsertStep(runID, StepRecord{
		StepNo:      req.StepNo,
		Thought:     req.Thought,
		Action:      req.Action,
		ActionInput: req.ActionInput,
		Observation: req.Observation,
		Error:       req.Error,
		LatencyS:    req.LatencyS,
		ModelUsage:  req.ModelUsage,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.FinalizeRun(runID, req.FinalAnswer, req.Metrics); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	run, steps, err := s.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if steps == nil {
		steps = []StepRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "steps": steps})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
