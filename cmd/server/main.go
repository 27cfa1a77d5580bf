// Package main is the entry point for the GeoEco tracker HTTP server.
//
// Startup: configuration from the environment (.env supported), structured
// logging, dependency wiring over core.db and forecasts.db, the background
// scheduler (forecast refresh, database checks, maintenance, snapshots) and
// the JSON API. SIGINT or SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/server"
	"github.com/geoeco/tracker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting GeoEco tracker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}
