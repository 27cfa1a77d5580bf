// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (defaults to "./data", always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Seed drives every random draw of dataset generation
	Seed uint64
	// TargetsJSON overrides national calibration targets, {"tonnes": {...}, "kg": {...}}
	TargetsJSON string

	Forecast ForecastConfig
	Snapshot SnapshotConfig
}

// ForecastConfig controls the scheduled forecast refresh
type ForecastConfig struct {
	YearsAhead  int
	MonthsAhead int
	Schedule    string // cron expression with seconds field
	Workers     int
	RecalcBand  bool
}

// SnapshotConfig holds S3-compatible object storage settings for snapshot export
type SnapshotConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // Empty means AWS S3; set for R2, MinIO and friends
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Schedule        string // cron expression with seconds field
	KeepLocal       int    // local snapshot files kept by maintenance
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("GEOECO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("GO_PORT", 8080),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Seed:        uint64(getEnvAsInt("GEOECO_SEED", 2025)),
		TargetsJSON: getEnv("GEOECO_TARGETS_JSON", ""),
		Forecast: ForecastConfig{
			YearsAhead:  getEnvAsInt("FORECAST_YEARS_AHEAD", 3),
			MonthsAhead: getEnvAsInt("FORECAST_MONTHS_AHEAD", 6),
			Schedule:    getEnv("FORECAST_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
			Workers:     getEnvAsInt("FORECAST_WORKERS", 4),
			RecalcBand:  getEnvAsBool("FORECAST_RECALC_BAND", true),
		},
		Snapshot: SnapshotConfig{
			Enabled:         getEnvAsBool("SNAPSHOT_ENABLED", false),
			Bucket:          getEnv("SNAPSHOT_BUCKET", ""),
			Endpoint:        getEnv("SNAPSHOT_ENDPOINT", ""),
			Region:          getEnv("SNAPSHOT_REGION", "auto"),
			AccessKeyID:     getEnv("SNAPSHOT_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SNAPSHOT_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("SNAPSHOT_PREFIX", "geoeco-snapshots/"),
			Schedule:        getEnv("SNAPSHOT_SCHEDULE", "0 30 2 * * *"), // 02:30 daily
			KeepLocal:       getEnvAsInt("SNAPSHOT_KEEP_LOCAL", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and required fields
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}
	if c.Forecast.YearsAhead < 1 {
		return fmt.Errorf("FORECAST_YEARS_AHEAD must be at least 1, got %d", c.Forecast.YearsAhead)
	}
	if c.Forecast.MonthsAhead < 1 {
		return fmt.Errorf("FORECAST_MONTHS_AHEAD must be at least 1, got %d", c.Forecast.MonthsAhead)
	}
	if c.Forecast.Workers < 1 {
		return fmt.Errorf("FORECAST_WORKERS must be at least 1, got %d", c.Forecast.Workers)
	}
	if c.Forecast.Schedule != "" {
		if _, err := cron.NewParser(cronParseOptions).Parse(c.Forecast.Schedule); err != nil {
			return fmt.Errorf("invalid FORECAST_SCHEDULE %q: %w", c.Forecast.Schedule, err)
		}
	}
	if c.Snapshot.Schedule != "" {
		if _, err := cron.NewParser(cronParseOptions).Parse(c.Snapshot.Schedule); err != nil {
			return fmt.Errorf("invalid SNAPSHOT_SCHEDULE %q: %w", c.Snapshot.Schedule, err)
		}
	}
	if c.Snapshot.Enabled {
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("SNAPSHOT_BUCKET is required when SNAPSHOT_ENABLED is set")
		}
		if c.Snapshot.AccessKeyID == "" || c.Snapshot.SecretAccessKey == "" {
			return fmt.Errorf("snapshot credentials are required when SNAPSHOT_ENABLED is set")
		}
	}
	return nil
}

// CoreDBPath returns the path of the core database
func (c *Config) CoreDBPath() string {
	return filepath.Join(c.DataDir, "core.db")
}

// ForecastsDBPath returns the path of the forecasts database
func (c *Config) ForecastsDBPath() string {
	return filepath.Join(c.DataDir, "forecasts.db")
}

// SnapshotDir returns the local snapshot directory
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// Matches cron.WithSeconds(): the scheduler accepts a leading seconds field.
const cronParseOptions = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
