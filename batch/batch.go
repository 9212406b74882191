// Package batch runs a suite of cases through the engine with bounded
// concurrency and scores the outcomes. Each worker slot builds its own
// engine and bus bound to its own working directory, so runs never
// share mutable tool state.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tracebound/reagent/engine"
	"github.com/tracebound/reagent/trace"
)

// Case is one evaluation task.
type Case struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Expect string `json:"expect,omitempty"`
}

// Report is the outcome of one case.
type Report struct {
	ID          string  `json:"id"`
	RunID       string  `json:"run_id"`
	Status      string  `json:"status"`
	Steps       int     `json:"steps"`
	LatencyS    float64 `json:"latency_s"`
	TotalTokens int     `json:"token_est_total"`
	ToolCalls   int     `json:"tool_calls"`
	FinalAnswer string  `json:"final_answer"`
	Score       float64 `json:"score"`
	Error       string  `json:"error,omitempty"`
}

// Summary aggregates a batch's reports.
type Summary struct {
	Total       int     `json:"total"`
	OK          int     `json:"ok"`
	MaxSteps    int     `json:"max_steps"`
	Failed      int     `json:"failed"`
	AvgSteps    float64 `json:"avg_steps"`
	AvgLatencyS float64 `json:"avg_latency_s"`
	AvgTokens   float64 `json:"avg_token_est"`
	AvgToolCall float64 `json:"avg_tool_calls"`
	AvgScore    float64 `json:"avg_score"`
}

// ReadCases parses a JSONL case file, skipping blank lines.
func ReadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cases: %w", err)
	}
	defer f.Close()

	var cases []Case
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("cases line %d: %w", line, err)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", line)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}

// EngineFactory builds a fresh engine (with its own bus) rooted at the
// given working directory. Called once per case.
type EngineFactory func(workdir string) (*engine.Engine, error)

// Runner executes cases concurrently.
type Runner struct {
	factory     EngineFactory
	outBase     string
	policyName  string
	concurrency int
	log         zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency bounds the number of in-flight runs. Defaults to 4.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a batch runner. Artifacts land under
// <outBase>/<policyName>/<caseID>/.
func NewRunner(factory EngineFactory, outBase, policyName string, opts ...RunnerOption) *Runner {
	r := &Runner{
		factory:     factory,
		outBase:     outBase,
		policyName:  policyName,
		concurrency: 4,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes all cases and returns one report per case, in input
// order. Individual case failures are recorded, never propagated.
func (r *Runner) Run(ctx context.Context, cases []Case) []Report {
	reports := make([]Report, len(cases))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i, c := range cases {
		wg.Add(1)
		go func(idx int, c Case) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[idx] = r.runOne(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return reports
}

func (r *Runner) runOne(ctx context.Context, c Case) Report {
	workdir := filepath.Join(r.outBase, r.policyName, c.ID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return Report{ID: c.ID, Status: "failed", Error: err.Error()}
	}

	eng, err := r.factory(workdir)
	if err != nil {
		return Report{ID: c.ID, Status: "failed", Error: err.Error()}
	}

	run, runErr := eng.Run(ctx, c.Prompt)
	rep := Report{
		ID:          c.ID,
		RunID:       run.RunID,
		Status:      statusLabel(run.Status),
		Steps:       len(run.Steps),
		LatencyS:    run.Metrics.TotalLatencyS,
		TotalTokens: run.Metrics.TotalTokens,
		ToolCalls:   run.Metrics.ToolCalls,
		FinalAnswer: run.FinalAnswer,
		Score:       Score(run.FinalAnswer, c.Expect),
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	r.log.Info().
		Str("case_id", c.ID).
		Str("run_id", run.RunID).
		Str("status", rep.Status).
		Float64("score", rep.Score).
		Msg("case finished")
	return rep
}

func statusLabel(s trace.Status) string {
	switch s {
	case trace.StatusFinalAnswer:
		return "ok"
	case trace.StatusMaxStepsExceeded:
		return "max_steps"
	default:
		return "failed"
	}
}

// Score grades a final answer against an expectation by substring
// match, case-insensitive. An empty expectation scores zero.
func Score(finalAnswer, expect string) float64 {
	if expect == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(finalAnswer), strings.ToLower(expect)) {
		return 1
	}
	return 0
}

// Aggregate summarizes a batch of reports.
func Aggregate(reports []Report) Summary {
	s := Summary{Total: len(reports)}
	if len(reports) == 0 {
		return s
	}

	var steps, tokens, toolCalls int
	var latency, score float64
	for _, r := range reports {
		switch r.Status {
		case "ok":
			s.OK++
		case "max_steps":
			s.MaxSteps++
		default:
			s.Failed++
		}
		steps += r.Steps
		tokens += r.TotalTokens
		toolCalls += r.ToolCalls
		latency += r.LatencyS
		score += r.Score
	}

	n := float64(len(reports))
	s.AvgSteps = round3(float64(steps) / n)
	s.AvgLatencyS = round3(latency / n)
	s.AvgTokens = round3(float64(tokens) / n)
	s.AvgToolCall = round3(float64(toolCalls) / n)
	s.AvgScore = round3(score / n)
	return s
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

// WriteResults persists the reports and summary as a single JSON
// document under outBase.
func WriteResults(outBase, policyName string, reports []Report) (string, error) {
	doc := struct {
		Policy  string   `json:"policy"`
		Summary Summary  `json:"summary"`
		Reports []Report `json:"reports"`
	}{
		Policy:  policyName,
		Summary: Aggregate(reports),
		Reports: reports,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outBase, fmt.Sprintf("batch_results_%s.json", policyName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
