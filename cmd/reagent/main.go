// Command reagent runs a single task through the reason-then-act loop
// and prints the final answer and metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tracebound/reagent/adapter"
	"github.com/tracebound/reagent/engine"
	"github.com/tracebound/reagent/policy"
	"github.com/tracebound/reagent/sink"
	"github.com/tracebound/reagent/toolbus"
)

func main() {
	godotenv.Load()

	var (
		task       = flag.String("task", "", "task description (required)")
		policyPath = flag.String("policy", "cases/policies/v1.yaml", "policy file path")
		provider   = flag.String("provider", "openai", "model provider: openai|anthropic|google")
		sinkKind   = flag.String("sink", "file", "observation sink: file|http")
		backend    = flag.String("backend", "http://127.0.0.1:8000", "collector address (when -sink=http)")
		reportDir  = flag.String("report-dir", "runs", "artifact base directory (when -sink=file)")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *task == "" {
		fmt.Fprintln(os.Stderr, "usage: reagent -task \"...\" [-policy path] [-provider openai|anthropic|google] [-sink file|http]")
		os.Exit(2)
	}

	ctx := context.Background()

	pol, err := policy.LoadOrDefault(*policyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load policy")
	}

	model, err := adapter.New(ctx, *provider, adapter.Options{
		Model:       pol.Model,
		Temperature: &pol.Temperature,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build adapter")
	}

	bus := toolbus.NewLocalBus(toolbus.WithAllow(pol.Tools.Allow...))

	var snk sink.Sink
	if *sinkKind == "http" {
		snk = sink.NewHTTPSink(*backend)
	} else {
		snk = sink.NewFileSink(*reportDir)
	}

	cfg := engine.DefaultConfig()
	cfg.MaxSteps = pol.MaxSteps
	cfg.PolicyName = pol.Name
	cfg.RedactSecrets = pol.RedactThought

	eng := engine.New(model, bus, cfg, snk, engine.WithLogger(log))

	run, err := eng.Run(ctx, *task)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.RunID).Msg("run ended unrecoverably")
	}

	fmt.Println("=== FINAL ANSWER ===")
	if run.FinalAnswer != "" {
		fmt.Println(run.FinalAnswer)
	} else {
		fmt.Println("<none>")
	}

	metrics, _ := json.MarshalIndent(run.Metrics, "", "  ")
	fmt.Println("\n=== METRICS ===")
	fmt.Println(string(metrics))

	if err != nil {
		os.Exit(1)
	}
}
