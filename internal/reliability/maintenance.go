package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Free space thresholds for the data directory
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// MaintenanceJob checks database integrity, truncates WAL files, watches
// disk space and prunes old local snapshots.
type MaintenanceJob struct {
	databases map[string]*database.DB
	snapshots *SnapshotService
	dataDir   string
	keepLocal int
	log       zerolog.Logger
}

// NewMaintenanceJob creates the daily maintenance job. snapshots may be nil.
func NewMaintenanceJob(
	databases map[string]*database.DB,
	snapshots *SnapshotService,
	dataDir string,
	keepLocal int,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		snapshots: snapshots,
		dataDir:   dataDir,
		keepLocal: keepLocal,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance steps in order. Integrity failures and a
// critically full disk abort the run.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return fmt.Errorf("database %s failed integrity check: %w", name, err)
		}
		res, err := db.Checkpoint(ctx, "TRUNCATE")
		if err != nil {
			// Not fatal, the next autocheckpoint catches up
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			continue
		}
		j.log.Debug().
			Str("database", name).
			Int("wal_frames", res.LogFrames).
			Bool("busy", res.Busy).
			Msg("WAL truncated")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if pruned, err := j.pruneLocalSnapshots(); err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune local snapshots")
	} else if pruned > 0 {
		j.log.Info().Int("pruned", pruned).Msg("Pruned local snapshots")
	}

	j.log.Info().Dur("duration", time.Since(start)).Msg("Maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("free_gb", freeGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	switch {
	case freeGB < criticalFreeGB:
		j.log.Error().Float64("free_gb", freeGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	case freeGB < lowFreeGB:
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}
	return nil
}

func (j *MaintenanceJob) pruneLocalSnapshots() (int, error) {
	if j.snapshots == nil || j.keepLocal <= 0 {
		return 0, nil
	}
	snaps, err := j.snapshots.LocalSnapshots()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, s := range snaps[min(j.keepLocal, len(snaps)):] {
		if err := os.Remove(filepath.Join(j.snapshots.dir, s.Filename)); err != nil {
			return pruned, fmt.Errorf("failed to remove %s: %w", s.Filename, err)
		}
		pruned++
	}
	return pruned, nil
}
