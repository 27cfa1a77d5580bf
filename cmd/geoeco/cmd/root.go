// Package cmd implements the geoeco command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/di"
	"github.com/geoeco/tracker/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	cfg      *config.Config
	log      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "geoeco",
	Short:         "Track mining sites, their history and forecasts across Oman",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cmd.Flags().Changed("data-dir") {
			abs, err := filepath.Abs(dataDir)
			if err != nil {
				return fmt.Errorf("resolving data dir: %w", err)
			}
			if err := os.MkdirAll(abs, 0755); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
			cfg.DataDir = abs
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		log = logger.New(logger.Config{
			Level:  cfg.LogLevel,
			Pretty: true,
			Output: os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Directory holding core.db, forecasts.db and snapshots")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd, forecastCmd, exportCmd, serveCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// wire builds a container for one-shot commands. Metrics go to a private
// registry since nothing scrapes them.
func wire(ctx context.Context) (*di.Container, *di.JobInstances, error) {
	return di.Wire(ctx, cfg, prometheus.NewRegistry(), log)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
