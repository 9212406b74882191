// Command reagent-batch runs a JSONL case suite concurrently and
// writes per-case reports plus an aggregate summary.
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
	"github.com/tracebound/reagent/batch"
	"github.com/tracebound/reagent/engine"
	"github.com/tracebound/reagent/policy"
	"github.com/tracebound/reagent/sink"
	"github.com/tracebound/reagent/toolbus"
)

func main() {
	godotenv.Load()

	var (
		casesPath  = flag.String("cases", "cases/cases.jsonl", "JSONL case file")
		policyPath = flag.String("policy", "cases/policies/v1.yaml", "policy file path")
		provider   = flag.String("provider", "openai", "model provider: openai|anthropic|google")
		outBase    = flag.String("out-base", "runs", "output base directory")
		maxConc    = flag.Int("max-concurrency", 4, "worker slots")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	pol, err := policy.LoadOrDefault(*policyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load policy")
	}

	cases, err := batch.ReadCases(*casesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read cases")
	}
	if len(cases) == 0 {
		log.Fatal().Str("path", *casesPath).Msg("no cases found")
	}

	if err := os.MkdirAll(*outBase, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output directory")
	}

	// Each case gets its own engine and bus bound to its own working
	// directory, so concurrent runs cannot interfere.
	factory := func(workdir string) (*engine.Engine, error) {
		model, err := adapter.New(ctx, *provider, adapter.Options{
			Model:       pol.Model,
			Temperature: &pol.Temperature,
		})
		if err != nil {
			return nil, err
		}
		bus := toolbus.NewLocalBus(
			toolbus.WithAllow(pol.Tools.Allow...),
			toolbus.WithWorkdir(workdir),
		)
		cfg := engine.DefaultConfig()
		cfg.MaxSteps = pol.MaxSteps
		cfg.PolicyName = pol.Name
		cfg.RedactSecrets = pol.RedactThought
		cfg.Workdir = workdir
		return engine.New(model, bus, cfg, sink.NewFileSink(workdir), engine.WithLogger(log)), nil
	}

	runner := batch.NewRunner(factory, *outBase, pol.Name,
		batch.WithConcurrency(*maxConc),
		batch.WithLogger(log),
	)
	reports := runner.Run(ctx, cases)

	path, err := batch.WriteResults(*outBase, pol.Name, reports)
	if err != nil {
		log.Fatal().Err(err).Msg("write results")
	}

	summary, _ := json.MarshalIndent(batch.Aggregate(reports), "", "  ")
	fmt.Println("=== SUMMARY ===")
	fmt.Println(string(summary))
	fmt.Println("results written to", path)
}
