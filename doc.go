// Package reagent provides a bounded "reason then act" control loop over
// language models: the engine alternates between asking a model for a next
// step and, when the model requests one, invoking a sandboxed tool,
// recording every step for audit and rendering.
//
// # Core Contracts
//
// The root package defines the three load-bearing contracts:
//
//   - [Adapter]: message-list-in / text-plus-usage-out model invocation,
//     with rate-limit vs fatal error classification
//   - the tool bus (see [github.com/tracebound/reagent/toolbus]): named
//     string-argument tool dispatch behind an allow-list and a per-run
//     working directory
//   - the trace sink (see [github.com/tracebound/reagent/sink]): the
//     run_start / emit_step / run_end observability protocol
//
// # Running a Task
//
//	ad := openai.New(os.Getenv("OPENAI_API_KEY"))
//	bus := toolbus.NewLocalBus(toolbus.WithAllow("calculator", "write_file"))
//	snk := sink.NewFileSink("runs")
//
//	eng := engine.New(ad, bus, engine.Config{MaxSteps: 8, Workdir: "runs/demo"}, snk)
//	run, err := eng.Run(ctx, "compute 12*7 then write it to result.txt")
//	if err != nil {
//	    log.Fatal(err) // unrecoverable adapter failure; run is still sealed
//	}
//	fmt.Println(run.FinalAnswer)
//
// The returned trace is sealed exactly once with one of three terminal
// statuses: final answer, max steps exceeded, or unrecoverable error.
// Tool and parse failures never abort the loop; they are absorbed into the
// trace and surfaced to the model as the next observation.
//
// # Higher Layers
//
// Concurrency lives above the engine: each parallel run gets its own
// engine and bus bound to its own working directory (see
// [github.com/tracebound/reagent/batch]). The HTTP backend that stores and
// re-serves runs lives in [github.com/tracebound/reagent/server].
package reagent
