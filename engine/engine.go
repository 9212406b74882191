// Package engine implements the reason-then-act control loop. One
// Engine owns one adapter, one tool bus, and one sink; each Run builds
// one trace, appends steps in order, seals it exactly once, and hands
// snapshots to the sink at well-defined points. Sink failures are
// logged and never abort a run.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ai "github.com/tracebound/reagent"
	"github.com/tracebound/reagent/sink"
	"github.com/tracebound/reagent/toolbus"
	"github.com/tracebound/reagent/trace"
)

const systemPrompt = `You are a helpful AI assistant. You can use tools to help solve problems.

Available tools: %s

Always follow this format:
Thought: [your reasoning]
Action: [tool name or 'Final Answer']
Action Input: [tool input or your final response]

When you have enough information to answer, use:
Action: Final Answer
Action Input: [your complete answer]`

// Config controls one engine's loop behavior.
type Config struct {
	// MaxSteps bounds the loop; must be > 0.
	MaxSteps int

	// PolicyName is recorded in the trace for provenance.
	PolicyName string

	// RedactSecrets masks key-shaped substrings in thoughts before they
	// are stored.
	RedactSecrets bool

	// AllowEmptyActionInput permits dispatching a tool with no argument.
	AllowEmptyActionInput bool

	// StepDelay is the pause between iterations (never before the
	// first). Cooperative pacing for upstream rate limits.
	StepDelay time.Duration

	// ContextSteps is how many recent steps are replayed into the
	// prompt. Bounds prompt growth.
	ContextSteps int

	// Workdir is the root for this run's file tools. Empty means a
	// per-run directory under "runs".
	Workdir string
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:              10,
		PolicyName:            "default",
		RedactSecrets:         true,
		AllowEmptyActionInput: true,
		StepDelay:             time.Second,
		ContextSteps:          3,
	}
}

// Engine drives the reason-then-act loop. It is single-threaded per
// Run: one engine (and its bus) serves at most one in-flight run.
type Engine struct {
	adapter  ai.Adapter
	bus      toolbus.Bus
	cfg      Config
	sink     sink.Sink
	log      zerolog.Logger
	redactor *trace.Redactor
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New assembles an engine from its four collaborators.
func New(adapter ai.Adapter, bus toolbus.Bus, cfg Config, snk sink.Sink, opts ...Option) *Engine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.ContextSteps <= 0 {
		cfg.ContextSteps = DefaultConfig().ContextSteps
	}
	if cfg.PolicyName == "" {
		cfg.PolicyName = "default"
	}
	if snk == nil {
		snk = sink.Discard{}
	}
	e := &Engine{
		adapter:  adapter,
		bus:      bus,
		cfg:      cfg,
		sink:     snk,
		log:      zerolog.Nop(),
		redactor: trace.NewRedactor(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one task to a terminal state. The returned trace is
// always non-nil and sealed. The error is non-nil only when the run
// ended as unrecoverable (adapter failure or context cancellation);
// max-steps exhaustion is a sealed outcome, not an error.
func (e *Engine) Run(ctx context.Context, task string) (*trace.Run, error) {
	run := trace.NewRun(task, e.adapter.Name(), e.cfg.PolicyName)

	workdir := e.cfg.Workdir
	if workdir == "" {
		workdir = filepath.Join("runs", run.RunID)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		e.seal(run, trace.StatusUnrecoverableError, "")
		return run, fmt.Errorf("create workdir: %w", err)
	}
	e.bus.SetWorkdir(workdir)

	e.notify(run.RunID, "run_start", func() error { return e.sink.RunStart(run) })

	names := e.toolNames()
	system := ai.NewSystemMessage(fmt.Sprintf(systemPrompt, strings.Join(names, ", ")))

	for i := 1; i <= e.cfg.MaxSteps; i++ {
		if i > 1 && e.cfg.StepDelay > 0 {
			select {
			case <-ctx.Done():
				e.seal(run, trace.StatusUnrecoverableError, "")
				e.notify(run.RunID, "run_end", func() error { return e.sink.RunEnd(run) })
				return run, ctx.Err()
			case <-time.After(e.cfg.StepDelay):
			}
		}

		messages := []ai.Message{system, ai.NewUserMessage(e.userPrompt(task, names, run.Steps))}

		start := time.Now()
		comp, err := e.adapter.Chat(ctx, messages)
		modelLatency := time.Since(start)

		if err != nil {
			step := trace.Step{
				Step:         i,
				Error:        err.Error(),
				ModelLatency: modelLatency,
			}
			e.append(run, step)
			e.seal(run, trace.StatusUnrecoverableError, "")
			e.notify(run.RunID, "run_end", func() error { return e.sink.RunEnd(run) })
			return run, fmt.Errorf("model call failed at step %d: %w", i, err)
		}

		r := parseReply(comp.Text)
		thought := r.Thought
		if e.cfg.RedactSecrets {
			thought = e.redactor.Redact(thought)
		}

		// No structured fields at all: treat the whole response as the
		// answer rather than stalling on malformed output.
		if !r.structured {
			r.Final = true
			r.FinalAnswer = strings.TrimSpace(comp.Text)
			if e.cfg.RedactSecrets {
				r.FinalAnswer = e.redactor.Redact(r.FinalAnswer)
			}
		}

		if r.Final {
			step := trace.Step{
				Step:         i,
				Thought:      thought,
				ModelLatency: modelLatency,
				Usage:        comp.Usage,
			}
			e.append(run, step)
			e.seal(run, trace.StatusFinalAnswer, r.FinalAnswer)
			e.notify(run.RunID, "run_end", func() error { return e.sink.RunEnd(run) })
			return run, nil
		}

		step := trace.Step{
			Step:         i,
			Thought:      thought,
			ModelLatency: modelLatency,
			Usage:        comp.Usage,
		}

		if r.Action != "" && !isNoop(r.Action) {
			step.Action = r.Action
			step.ActionInput = r.ActionInput
			if r.ActionInput == "" && !e.cfg.AllowEmptyActionInput {
				step.Error = fmt.Sprintf("action %q requires an input", r.Action)
			} else {
				res := e.bus.Call(ctx, r.Action, r.ActionInput)
				step.ToolLatency = res.Latency
				step.Observation = res.Output
				if res.Error != "" {
					step.Error = res.Error
				}
			}
			if step.Observation == "" && step.Error == "" {
				step.Observation = "No output"
			}
		}

		e.append(run, step)
	}

	e.seal(run, trace.StatusMaxStepsExceeded, "")
	e.notify(run.RunID, "run_end", func() error { return e.sink.RunEnd(run) })
	return run, nil
}

// userPrompt composes the per-iteration user message: the task, the
// allowed tools, and a transcript of the most recent steps.
func (e *Engine) userPrompt(task string, names []string, steps []trace.Step) string {
	recent := steps
	if len(recent) > e.cfg.ContextSteps {
		recent = recent[len(recent)-e.cfg.ContextSteps:]
	}

	var blocks []string
	for _, s := range recent {
		obs := s.Observation
		if obs == "" && s.Error != "" {
			obs = s.Error
		}
		blocks = append(blocks, fmt.Sprintf(
			"Step %d -> Thought: %s\nAction: %s\nAction Input: %s\nObservation: %s",
			s.Step, s.Thought, s.Action, s.ActionInput, obs))
	}
	transcript := "<none>"
	if len(blocks) > 0 {
		transcript = strings.Join(blocks, "\n\n")
	}

	return fmt.Sprintf(
		"Task: %s\n\nAvailable Tools: %s\n\nRecent Steps:\n%s\n\nIMPORTANT:\n- Output \"Action: Final Answer\" once you have enough information.",
		task, strings.Join(names, ", "), transcript)
}

func (e *Engine) toolNames() []string {
	tools := e.bus.ListTools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// append records a step and notifies the sink. A step index conflict
// here is a programming error, so it panics rather than corrupting the
// trace.
func (e *Engine) append(run *trace.Run, step trace.Step) {
	if err := run.Append(step); err != nil {
		panic(fmt.Sprintf("trace append: %v", err))
	}
	e.notify(run.RunID, "emit_step", func() error { return e.sink.EmitStep(run.RunID, step) })
}

func (e *Engine) seal(run *trace.Run, status trace.Status, finalAnswer string) {
	if err := run.Seal(status, finalAnswer); err != nil {
		panic(fmt.Sprintf("trace seal: %v", err))
	}
}

// notify delivers one sink notification under the log-and-continue
// policy: the engine's trace stays authoritative whatever the sink does.
func (e *Engine) notify(runID, event string, fn func() error) {
	if err := fn(); err != nil {
		e.log.Warn().
			Str("run_id", runID).
			Str("event", event).
			Err(err).
			Msg("sink delivery failed; continuing")
	}
}
