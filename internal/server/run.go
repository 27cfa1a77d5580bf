package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/di"
	"github.com/rs/zerolog"
)

// Run wires dependencies, starts the scheduler and HTTP server, and blocks
// until ctx is cancelled or the server fails. Shutdown gives in-flight
// requests 10 seconds.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	container, jobs, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	srv := New(Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		container.Scheduler.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	// Running jobs finish before databases close
	container.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
