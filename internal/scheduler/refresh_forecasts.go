package scheduler

import (
	"context"
	"time"

	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/rs/zerolog"
)

// ForecastRefresher recomputes forecasts for every site
type ForecastRefresher interface {
	RefreshAll(ctx context.Context, opts forecast.RefreshOptions) (*forecast.Summary, error)
}

// RefreshForecastsJob recomputes every site's forecasts
type RefreshForecastsJob struct {
	service ForecastRefresher
	opts    forecast.RefreshOptions
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshForecastsJob creates a new RefreshForecastsJob
func NewRefreshForecastsJob(service ForecastRefresher, opts forecast.RefreshOptions, log zerolog.Logger) *RefreshForecastsJob {
	return &RefreshForecastsJob{
		service: service,
		opts:    opts,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "refresh_forecasts").Logger(),
	}
}

// Name returns the job name
func (j *RefreshForecastsJob) Name() string {
	return "refresh_forecasts"
}

// Run executes the refresh
func (j *RefreshForecastsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	summary, err := j.service.RefreshAll(ctx, j.opts)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", summary.RunID).
		Int("sites", summary.Sites).
		Int("fallbacks", summary.Fallbacks).
		Int("insufficient", summary.Insufficient).
		Int("band_changes", summary.BandChanges).
		Dur("duration", summary.Duration).
		Msg("Forecasts refreshed")
	return nil
}
