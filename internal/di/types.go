// Package di provides dependency injection type definitions.
//
// Container holds every long-lived dependency of the tracker. It is built by
// Wire and handed to the HTTP server and the CLI.
package di

import (
	"github.com/geoeco/tracker/internal/admin"
	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/modules/generation"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/observability"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/geoeco/tracker/internal/reliability"
	"github.com/geoeco/tracker/internal/scheduler"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases
	CoreDB      *database.DB // sites, companies, licences, alerts, history, generation runs
	ForecastsDB *database.DB // derived forecasts, safe to rebuild

	// Reference data
	Catalog  *regions.Catalog
	Resolver *admin.Resolver

	// Repositories
	SiteRepo     *sites.Repository
	SeriesRepo   *timeseries.Repository
	ForecastRepo *forecast.Repository

	// Services
	Metrics         *observability.Collector
	ForecastService *forecast.Service
	Generator       *generation.Generator
	Snapshots       *reliability.SnapshotService
	Scheduler       *scheduler.Scheduler
}

// Databases returns the databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		database.NameCore:      c.CoreDB,
		database.NameForecasts: c.ForecastsDB,
	}
}

// Close closes every open database
func (c *Container) Close() {
	if c.CoreDB != nil {
		c.CoreDB.Close()
	}
	if c.ForecastsDB != nil {
		c.ForecastsDB.Close()
	}
}

// JobInstances holds job references for manual triggering via API
type JobInstances struct {
	RefreshForecasts scheduler.Job
	CheckDatabases   scheduler.Job
	Maintenance      scheduler.Job
	ExportSnapshot   scheduler.Job
}

// ByName returns the registered jobs keyed by their names
func (j *JobInstances) ByName() map[string]scheduler.Job {
	out := map[string]scheduler.Job{}
	for _, job := range []scheduler.Job{j.RefreshForecasts, j.CheckDatabases, j.Maintenance, j.ExportSnapshot} {
		if job != nil {
			out[job.Name()] = job
		}
	}
	return out
}
