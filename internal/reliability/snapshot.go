// Package reliability exports point-in-time snapshots of the tracker's data
// and keeps the databases healthy.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion is bumped whenever the snapshot layout changes
const SnapshotVersion = 1

const (
	snapshotPrefix = "geoeco-snapshot-"
	snapshotSuffix = ".msgpack.gz"
	snapshotLayout = "2006-01-02-150405"
)

// Snapshot is the exported state of the registry.
type Snapshot struct {
	Version              int                            `msgpack:"version"`
	CreatedAt            time.Time                      `msgpack:"created_at"`
	Sites                []sites.Site                   `msgpack:"sites"`
	Companies            []sites.Company                `msgpack:"companies"`
	Production           []timeseries.ProductionPoint   `msgpack:"production"`
	Environment          []timeseries.EnvReading        `msgpack:"environment"`
	ProductionForecasts  []forecast.ProductionForecast  `msgpack:"production_forecasts"`
	EnvironmentForecasts []forecast.EnvironmentForecast `msgpack:"environment_forecasts"`
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ObjectStore is the remote side of snapshot export
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// SnapshotService builds and stores snapshots.
type SnapshotService struct {
	sites     *sites.Repository
	series    *timeseries.Repository
	forecasts *forecast.Repository
	store     ObjectStore
	dir       string
	now       func() time.Time
	log       zerolog.Logger
}

// NewSnapshotService creates a snapshot service. store may be nil when remote
// export is disabled.
func NewSnapshotService(
	siteRepo *sites.Repository,
	series *timeseries.Repository,
	forecasts *forecast.Repository,
	store ObjectStore,
	dir string,
	log zerolog.Logger,
) *SnapshotService {
	return &SnapshotService{
		sites:     siteRepo,
		series:    series,
		forecasts: forecasts,
		store:     store,
		dir:       dir,
		now:       time.Now,
		log:       log.With().Str("service", "snapshot").Logger(),
	}
}

// RemoteEnabled reports whether snapshots can be uploaded
func (s *SnapshotService) RemoteEnabled() bool {
	return s.store != nil
}

// Build gathers every site with its history and stored forecasts.
func (s *SnapshotService) Build(ctx context.Context) (*Snapshot, error) {
	list, err := s.sites.List(ctx, sites.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	companies, err := s.sites.ListCompanies(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	snap := &Snapshot{
		Version:              SnapshotVersion,
		CreatedAt:            s.now().UTC(),
		Sites:                list,
		Companies:            companies,
		Production:           []timeseries.ProductionPoint{},
		Environment:          []timeseries.EnvReading{},
		ProductionForecasts:  []forecast.ProductionForecast{},
		EnvironmentForecasts: []forecast.EnvironmentForecast{},
	}

	for _, site := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		production, err := s.series.ProductionHistory(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		environment, err := s.series.EnvironmentHistory(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		snap.Production = append(snap.Production, production...)
		snap.Environment = append(snap.Environment, environment...)

		if s.forecasts == nil {
			continue
		}
		pf, err := s.forecasts.Production(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		ef, err := s.forecasts.Environment(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		snap.ProductionForecasts = append(snap.ProductionForecasts, pf...)
		snap.EnvironmentForecasts = append(snap.EnvironmentForecasts, ef...)
	}

	return snap, nil
}

// Encode writes snap as gzip-compressed msgpack.
func Encode(w io.Writer, snap *Snapshot) error {
	zw := gzip.NewWriter(w)
	if err := msgpack.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Filename returns the snapshot name for a point in time
func Filename(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(snapshotLayout) + snapshotSuffix
}

// ParseFilename extracts the timestamp from a snapshot name.
func ParseFilename(name string) (time.Time, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	t, err := time.Parse(snapshotLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WriteLocal builds a snapshot and writes it under the service directory,
// returning the file path.
func (s *SnapshotService) WriteLocal(ctx context.Context) (string, error) {
	snap, err := s.Build(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(s.dir, Filename(snap.CreatedAt))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := Encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalise snapshot: %w", err)
	}

	s.log.Info().
		Str("path", path).
		Int("sites", len(snap.Sites)).
		Int("production", len(snap.Production)).
		Int("environment", len(snap.Environment)).
		Msg("Snapshot written")
	return path, nil
}

// Upload builds a snapshot and uploads it to the object store under prefix.
func (s *SnapshotService) Upload(ctx context.Context, prefix string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("snapshot upload is not configured")
	}
	snap, err := s.Build(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return "", err
	}
	key := prefix + Filename(snap.CreatedAt)
	size := buf.Len()
	if err := s.store.Upload(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.log.Info().Str("key", key).Int("size_bytes", size).Msg("Snapshot uploaded")
	return key, nil
}

// List returns remote snapshots under prefix, newest first.
func (s *SnapshotService) List(ctx context.Context, prefix string) ([]SnapshotInfo, error) {
	if s.store == nil {
		return nil, fmt.Errorf("snapshot upload is not configured")
	}
	objects, err := s.store.List(ctx, prefix+snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	now := s.now()
	out := make([]SnapshotInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := ParseFilename(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object with unexpected name")
			continue
		}
		out = append(out, SnapshotInfo{
			Filename:  obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// Rotate deletes remote snapshots older than retentionDays, always keeping
// the newest keep snapshots. A zero retention keeps everything.
func (s *SnapshotService) Rotate(ctx context.Context, prefix string, retentionDays, keep int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	snaps, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, snap := range snaps {
		if i < keep || !snap.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, snap.Filename); err != nil {
			s.log.Warn().Err(err).Str("key", snap.Filename).Msg("Failed to delete old snapshot")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("Rotated old snapshots")
	}
	return deleted, nil
}

// LocalSnapshots lists snapshot files in the service directory, newest first.
func (s *SnapshotService) LocalSnapshots() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	now := s.now()
	out := make([]SnapshotInfo, 0, len(entries))
	for _, e := range entries {
		ts, ok := ParseFilename(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SnapshotInfo{
			Filename:  e.Name(),
			Timestamp: ts,
			SizeBytes: info.Size(),
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(snaps []SnapshotInfo) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
}
