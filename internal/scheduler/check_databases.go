package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size, in frames, that earns a warning
const walWarnFrames = 1000

// CheckDatabasesJob verifies integrity of the SQLite databases and reports
// WAL growth.
type CheckDatabasesJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob
func NewCheckDatabasesJob(databases map[string]*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		log:       zerolog.Nop(),
		databases: databases,
	}
}

// SetLogger sets the logger for the job
func (j *CheckDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the check databases job
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	checked := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		res, err := db.Checkpoint(ctx, "PASSIVE")
		if err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
		} else if res.LogFrames > walWarnFrames {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", res.LogFrames).
				Int("checkpointed", res.Checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		}

		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database check completed")
	return nil
}
