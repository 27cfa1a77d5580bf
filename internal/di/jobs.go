package di

import (
	"fmt"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/reliability"
	"github.com/geoeco/tracker/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules, seconds field first
const (
	checkDatabasesSchedule = "@hourly"
	maintenanceSchedule    = "0 0 2 * * *" // 02:00 daily
)

// RegisterJobs creates the background jobs and registers them with the
// scheduler. An empty schedule in config leaves that job manual-only.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("services must be initialized first")
	}

	instances := &JobInstances{}

	// Forecast refresh
	instances.RefreshForecasts = scheduler.NewRefreshForecastsJob(container.ForecastService, forecast.RefreshOptions{
		YearsAhead:  cfg.Forecast.YearsAhead,
		MonthsAhead: cfg.Forecast.MonthsAhead,
		Workers:     cfg.Forecast.Workers,
		RecalcBand:  cfg.Forecast.RecalcBand,
	}, log)
	if cfg.Forecast.Schedule != "" {
		if err := container.Scheduler.AddJob(cfg.Forecast.Schedule, instances.RefreshForecasts); err != nil {
			return nil, fmt.Errorf("failed to schedule forecast refresh: %w", err)
		}
	}

	// Database health
	checkDatabases := scheduler.NewCheckDatabasesJob(container.Databases())
	checkDatabases.SetLogger(log.With().Str("job", "check_databases").Logger())
	instances.CheckDatabases = checkDatabases
	if err := container.Scheduler.AddJob(checkDatabasesSchedule, checkDatabases); err != nil {
		return nil, fmt.Errorf("failed to schedule database check: %w", err)
	}

	// Maintenance
	instances.Maintenance = reliability.NewMaintenanceJob(container.Databases(), container.Snapshots, cfg.DataDir, cfg.Snapshot.KeepLocal, log)
	if err := container.Scheduler.AddJob(maintenanceSchedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	// Snapshot export
	instances.ExportSnapshot = scheduler.NewExportSnapshotJob(container.Snapshots, cfg.Snapshot.Prefix, log)
	if cfg.Snapshot.Schedule != "" {
		if err := container.Scheduler.AddJob(cfg.Snapshot.Schedule, instances.ExportSnapshot); err != nil {
			return nil, fmt.Errorf("failed to schedule snapshot export: %w", err)
		}
	}

	log.Info().Int("jobs", len(instances.ByName())).Msg("Jobs registered")
	return instances, nil
}
