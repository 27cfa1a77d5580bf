package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotExporter writes and uploads snapshots
type SnapshotExporter interface {
	WriteLocal(ctx context.Context) (string, error)
	Upload(ctx context.Context, prefix string) (string, error)
	Rotate(ctx context.Context, prefix string, retentionDays, keep int) (int, error)
	RemoteEnabled() bool
}

// Remote snapshots are kept this long, but never fewer than remoteKeep
const (
	remoteRetentionDays = 30
	remoteKeep          = 3
)

// ExportSnapshotJob writes a local snapshot and, when object storage is
// configured, uploads one and rotates old uploads.
type ExportSnapshotJob struct {
	exporter SnapshotExporter
	prefix   string
	log      zerolog.Logger
}

// NewExportSnapshotJob creates a new ExportSnapshotJob
func NewExportSnapshotJob(exporter SnapshotExporter, prefix string, log zerolog.Logger) *ExportSnapshotJob {
	return &ExportSnapshotJob{
		exporter: exporter,
		prefix:   prefix,
		log:      log.With().Str("job", "export_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *ExportSnapshotJob) Name() string {
	return "export_snapshot"
}

// Run executes the export
func (j *ExportSnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := j.exporter.WriteLocal(ctx); err != nil {
		return err
	}
	if !j.exporter.RemoteEnabled() {
		return nil
	}

	if _, err := j.exporter.Upload(ctx, j.prefix); err != nil {
		return err
	}
	if _, err := j.exporter.Rotate(ctx, j.prefix, remoteRetentionDays, remoteKeep); err != nil {
		j.log.Warn().Err(err).Msg("Snapshot rotation failed")
	}
	return nil
}
