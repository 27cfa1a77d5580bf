package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/geoeco/tracker/internal/band"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// HistorySource reads observed site history
type HistorySource interface {
	ProductionHistory(ctx context.Context, siteID int64) ([]timeseries.ProductionPoint, error)
	EnvironmentHistory(ctx context.Context, siteID int64) ([]timeseries.EnvReading, error)
	LatestEnvironment(ctx context.Context, siteID int64) (*timeseries.EnvReading, error)
}

// SiteRef is the part of a site a refresh needs.
type SiteRef struct {
	ID     int64
	Status domain.Status
	Band   domain.Band
}

// SiteStore lists sites to refresh and persists recalculated bands.
type SiteStore interface {
	ForecastTargets(ctx context.Context) ([]SiteRef, error)
	UpdateBand(ctx context.Context, siteID int64, b domain.Band) error
}

// MetricsRecorder counts forecast outcomes per series ("production", "environment").
type MetricsRecorder interface {
	RecordForecast(series, outcome string)
}

// Service refreshes stored forecasts from history.
type Service struct {
	history HistorySource
	store   *Repository
	sites   SiteStore
	metrics MetricsRecorder
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a forecast service. sites and metrics may be nil.
func NewService(history HistorySource, store *Repository, sites SiteStore, metrics MetricsRecorder, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		store:   store,
		sites:   sites,
		metrics: metrics,
		now:     time.Now,
		log:     log.With().Str("service", "forecast").Logger(),
	}
}

// Result describes one site's refresh.
type Result struct {
	SiteID        int64                 `json:"site_id"`
	RunID         string                `json:"run_id"`
	Production    []ProductionForecast  `json:"production"`
	Environment   []EnvironmentForecast `json:"environment"`
	ProductionBy  Method                `json:"production_method"`
	EnvironmentBy Method                `json:"environment_method"`
}

// RefreshForecasts recomputes both forecasts of one site and replaces its stored
// rows atomically. Repeating it with unchanged history yields the same rows.
func (s *Service) RefreshForecasts(ctx context.Context, siteID int64, yearsAhead, monthsAhead int) (*Result, error) {
	return s.refresh(ctx, siteID, yearsAhead, monthsAhead, uuid.NewString())
}

func (s *Service) refresh(ctx context.Context, siteID int64, yearsAhead, monthsAhead int, runID string) (*Result, error) {
	production, err := s.history.ProductionHistory(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("site %d: %w", siteID, err)
	}
	readings, err := s.history.EnvironmentHistory(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("site %d: %w", siteID, err)
	}

	annualIn := make([]AnnualPoint, len(production))
	for i, p := range production {
		annualIn[i] = AnnualPoint{Year: p.Year, Value: p.Quantity}
	}
	monthlyIn := make([]MonthlyPoint, len(readings))
	for i, e := range readings {
		monthlyIn[i] = MonthlyPoint{Date: e.Date, AQI: e.AQI, TDS: e.TDS, Rehab: e.Rehab}
	}

	annual, annualMethod := ForecastAnnual(annualIn, yearsAhead)
	monthly, monthlyMethod := ForecastMonthlyMultivariate(monthlyIn, monthsAhead)

	created := s.now().UTC()
	res := &Result{
		SiteID:        siteID,
		RunID:         runID,
		Production:    make([]ProductionForecast, len(annual)),
		Environment:   make([]EnvironmentForecast, len(monthly)),
		ProductionBy:  annualMethod,
		EnvironmentBy: monthlyMethod,
	}
	for i, p := range annual {
		res.Production[i] = ProductionForecast{
			SiteID:    siteID,
			Year:      p.Year,
			Quantity:  formulas.Round(p.Value, 2),
			Method:    annualMethod,
			RunID:     runID,
			CreatedAt: created,
		}
	}
	for i, m := range monthly {
		res.Environment[i] = EnvironmentForecast{
			SiteID:    siteID,
			Date:      m.Date,
			AQI:       formulas.Round(m.AQI, 1),
			TDS:       formulas.Round(m.TDS, 1),
			Rehab:     formulas.Round(m.Rehab, 1),
			Method:    monthlyMethod,
			RunID:     runID,
			CreatedAt: created,
		}
	}

	if err := s.store.ReplaceForSite(ctx, siteID, res.Production, res.Environment); err != nil {
		return nil, fmt.Errorf("site %d: %w", siteID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordForecast("production", annualMethod.Outcome())
		s.metrics.RecordForecast("environment", monthlyMethod.Outcome())
	}

	s.log.Debug().
		Int64("site_id", siteID).
		Str("production_method", string(annualMethod)).
		Str("environment_method", string(monthlyMethod)).
		Int("years", len(annual)).
		Int("months", len(monthly)).
		Msg("Refreshed forecasts")

	return res, nil
}

// RefreshOptions controls RefreshAll.
type RefreshOptions struct {
	YearsAhead  int
	MonthsAhead int
	Workers     int
	// RecalcBand reclassifies each site from its latest reading
	RecalcBand bool
	// SiteIDs limits the refresh; empty means every site
	SiteIDs []int64
}

// Summary reports a RefreshAll run.
type Summary struct {
	RunID        string        `json:"run_id"`
	Sites        int           `json:"sites"`
	Fallbacks    int           `json:"fallbacks"`
	Insufficient int           `json:"insufficient"`
	BandChanges  int           `json:"band_changes"`
	Duration     time.Duration `json:"duration_ns"`
}

// RefreshAll refreshes every site, or opts.SiteIDs, on a bounded worker pool.
// All sites share one run id. The first storage error cancels the run.
func (s *Service) RefreshAll(ctx context.Context, opts RefreshOptions) (*Summary, error) {
	if s.sites == nil {
		return nil, fmt.Errorf("forecast service has no site store")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	start := s.now()
	refs, err := s.sites.ForecastTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	refs = filterRefs(refs, opts.SiteIDs)

	summary := &Summary{RunID: uuid.NewString(), Sites: len(refs)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, ref := range refs {
		g.Go(func() error {
			res, err := s.refresh(gctx, ref.ID, opts.YearsAhead, opts.MonthsAhead, summary.RunID)
			if err != nil {
				return err
			}

			changed := false
			if opts.RecalcBand {
				if changed, err = s.recalcBand(gctx, ref); err != nil {
					return err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, m := range []Method{res.ProductionBy, res.EnvironmentBy} {
				switch m {
				case MethodFallback:
					summary.Fallbacks++
				case MethodNone:
					summary.Insufficient++
				}
			}
			if changed {
				summary.BandChanges++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Duration = s.now().Sub(start)
	s.log.Info().
		Str("run_id", summary.RunID).
		Int("sites", summary.Sites).
		Int("fallbacks", summary.Fallbacks).
		Int("insufficient", summary.Insufficient).
		Int("band_changes", summary.BandChanges).
		Dur("duration", summary.Duration).
		Msg("Forecast refresh complete")

	return summary, nil
}

// recalcBand classifies the site from its latest reading and stores a changed band.
func (s *Service) recalcBand(ctx context.Context, ref SiteRef) (bool, error) {
	latest, err := s.history.LatestEnvironment(ctx, ref.ID)
	if err != nil {
		return false, fmt.Errorf("site %d: %w", ref.ID, err)
	}
	if latest == nil {
		return false, nil
	}

	_, b := band.Classify(latest.AQI, latest.TDS, latest.Rehab, ref.Status)
	if b == ref.Band {
		return false, nil
	}
	if err := s.sites.UpdateBand(ctx, ref.ID, b); err != nil {
		return false, fmt.Errorf("site %d: %w", ref.ID, err)
	}
	return true, nil
}

func filterRefs(refs []SiteRef, ids []int64) []SiteRef {
	if len(ids) == 0 {
		return refs
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := refs[:0:0]
	for _, r := range refs {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
