package server

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	run_id TEXT PRIMARY KEY,
	task TEXT, model TEXT, policy TEXT, created_at TEXT,
	status TEXT DEFAULT 'running', final_answer TEXT, metrics_json TEXT
);
CREATE TABLE IF NOT EXISTS steps(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT, step_no INTEGER,
	thought TEXT, action TEXT, action_input TEXT, observation TEXT,
	error TEXT, latency_s REAL, model_usage_json TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID       string          `json:"run_id"`
	Task        string          `json:"task"`
	Model       string          `json:"model"`
	Policy      string          `json:"policy"`
	CreatedAt   string          `json:"created_at"`
	Status      string          `json:"status"`
	FinalAnswer string          `json:"final_answer,omitempty"`
	Metrics     json.RawMessage `json:"metrics,omitempty"`
}

// StepRecord is one row of the steps table.
type StepRecord struct {
	StepNo      int             `json:"step_no"`
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput string          `json:"action_input"`
	Observation string          `json:"observation"`
	Error       string          `json:"error"`
	LatencyS    float64         `json:"latency_s"`
	ModelUsage  json.RawMessage `json:"model_usage"`
	CreatedAt   string          `json:"created_at"`
}

// Store persists runs and steps in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the SQLite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRun registers a new run; re-registering a run_id replaces it.
func (s *Store) InsertRun(r RunRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs(run_id,task,model,policy,created_at) VALUES(?,?,?,?,?)`,
		r.RunID, r.Task, r.Model, r.Policy, r.CreatedAt)
	return err
}

// InsertStep appends a step record to a run.
func (s *Store) InsertStep(runID string, st StepRecord) error {
	usage := st.ModelUsage
	if usage == nil {
		usage = json.RawMessage(`{}`)
	}
	_, err := s.db.Exec(
		`INSERT INTO steps(run_id, step_no, thought, action, action_input, observation, error, latency_s, model_usage_json)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		runID, st.StepNo, st.Thought, st.Action, st.ActionInput, st.Observation,
		st.Error, st.LatencyS, string(usage))
	return err
}

// FinalizeRun marks a run done and records its answer and metrics.
func (s *Store) FinalizeRun(runID, finalAnswer string, metrics json.RawMessage) error {
	if metrics == nil {
		metrics = json.RawMessage(`{}`)
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status='done', final_answer=?, metrics_json=? WHERE run_id=?`,
		finalAnswer, string(metrics), runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id,task,model,policy,created_at,status FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Task, &r.Model, &r.Policy, &r.CreatedAt, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run with its ordered steps, or sql.ErrNoRows.
func (s *Store) GetRun(runID string) (RunRecord, []StepRecord, error) {
	var r RunRecord
	var finalAnswer, metrics sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id,task,model,policy,created_at,status,final_answer,metrics_json FROM runs WHERE run_id=?`,
		runID).Scan(&r.RunID, &r.Task, &r.Model, &r.Policy, &r.CreatedAt, &r.Status, &finalAnswer, &metrics)
	if err != nil {
		return RunRecord{}, nil, err
	}
	r.FinalAnswer = finalAnswer.String
	if metrics.Valid && metrics.String != "" {
		r.Metrics = json.RawMessage(metrics.String)
	}

	rows, err := s.db.Query(
		`SELECT step_no,thought,action,action_input,observation,error,latency_s,model_usage_json,created_at
		 FROM steps WHERE run_id=? ORDER BY step_no`, runID)
	if err != nil {
		return RunRecord{}, nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var st StepRecord
		var action, input, obs, stepErr, usage sql.NullString
		if err := rows.Scan(&st.StepNo, &st.Thought, &action, &input, &obs, &stepErr, &st.LatencyS, &usage, &st.CreatedAt); err != nil {
			return RunRecord{}, nil, err
		}
		st.Action = action.String
		st.ActionInput = input.String
		st.Observation = obs.String
		st.Error = stepErr.String
		if usage.Valid && usage.String != "" {
			st.ModelUsage = json.RawMessage(usage.String)
		}
		steps = append(steps, st)
	}
	return r, steps, rows.Err()
}
