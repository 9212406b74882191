// Command reagent-server runs the trace collector: it accepts the HTTP
// sink's push protocol and serves stored runs for inspection.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tracebound/reagent/server"
)

func main() {
	godotenv.Load()

	var (
		addr   = flag.String("addr", ":8000", "listen address")
		dbPath = flag.String("db", "agent_obs.db", "SQLite database path")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store, err := server.OpenStore(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	srv := server.New(store, log)
	log.Info().Str("addr", *addr).Str("db", *dbPath).Msg("collector listening")
	if err := http.ListenAndServe(*addr, srv); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
