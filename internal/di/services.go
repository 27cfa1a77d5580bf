package di

import (
	"context"
	"fmt"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/modules/generation"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/observability"
	"github.com/geoeco/tracker/internal/reliability"
	"github.com/geoeco/tracker/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// InitializeServices creates services on top of the repositories.
// reg may be nil to use the global Prometheus registry.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, reg prometheus.Registerer, log zerolog.Logger) error {
	if container.SiteRepo == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	metrics, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	container.Metrics = metrics

	container.ForecastService = forecast.NewService(
		container.SeriesRepo,
		container.ForecastRepo,
		&siteStoreAdapter{repo: container.SiteRepo},
		metrics,
		log,
	)

	container.Generator = generation.NewGenerator(
		container.CoreDB.Conn(),
		container.SiteRepo,
		container.SeriesRepo,
		container.ForecastRepo,
		container.Catalog,
		container.Resolver,
		metrics,
		log,
	)

	var store reliability.ObjectStore
	if cfg.Snapshot.Enabled {
		s3store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:          cfg.Snapshot.Bucket,
			Endpoint:        cfg.Snapshot.Endpoint,
			Region:          cfg.Snapshot.Region,
			AccessKeyID:     cfg.Snapshot.AccessKeyID,
			SecretAccessKey: cfg.Snapshot.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		store = s3store
	}
	container.Snapshots = reliability.NewSnapshotService(
		container.SiteRepo,
		container.SeriesRepo,
		container.ForecastRepo,
		store,
		cfg.SnapshotDir(),
		log,
	)

	container.Scheduler = scheduler.New(metrics, log)

	log.Info().Bool("snapshot_upload", store != nil).Msg("Services initialized")
	return nil
}

// siteStoreAdapter exposes the site registry to the forecast service
type siteStoreAdapter struct {
	repo *sites.Repository
}

func (a *siteStoreAdapter) ForecastTargets(ctx context.Context) ([]forecast.SiteRef, error) {
	list, err := a.repo.List(ctx, sites.Filter{})
	if err != nil {
		return nil, err
	}
	refs := make([]forecast.SiteRef, len(list))
	for i, s := range list {
		refs[i] = forecast.SiteRef{ID: s.ID, Status: s.Status, Band: s.Band}
	}
	return refs, nil
}

func (a *siteStoreAdapter) UpdateBand(ctx context.Context, siteID int64, b domain.Band) error {
	return a.repo.UpdateBand(ctx, siteID, b)
}
