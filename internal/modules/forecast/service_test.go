package forecast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	testingpkg "github.com/geoeco/tracker/internal/testing"
	"github.com/geoeco/tracker/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSites struct {
	mu      sync.Mutex
	refs    []SiteRef
	updated map[int64]domain.Band
}

func (f *fakeSites) ForecastTargets(context.Context) ([]SiteRef, error) {
	return f.refs, nil
}

func (f *fakeSites) UpdateBand(_ context.Context, id int64, b domain.Band) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64]domain.Band{}
	}
	f.updated[id] = b
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) RecordForecast(series, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[series+"/"+outcome]++
}

type fixture struct {
	core     *database.DB
	store    *Repository
	sites    *fakeSites
	metrics  *countingMetrics
	service  *Service
	siteIDs  []int64
	lastDate time.Time
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	core, cleanupCore := testingpkg.NewTestDB(t, database.NameCore)
	t.Cleanup(cleanupCore)
	forecasts, cleanupForecasts := testingpkg.NewTestDB(t, database.NameForecasts)
	t.Cleanup(cleanupForecasts)

	testingpkg.InsertMinerals(t, core.Conn())
	f := &fixture{core: core, sites: &fakeSites{}, metrics: &countingMetrics{}}
	for _, s := range testingpkg.NewSiteFixtures() {
		id := testingpkg.InsertSite(t, core.Conn(), s)
		f.siteIDs = append(f.siteIDs, id)
		f.sites.refs = append(f.sites.refs, SiteRef{ID: id, Status: domain.Status(s.Status), Band: domain.Band(s.Band)})
	}

	// Site 0 has full history, site 1 only two years, site 2 nothing.
	testingpkg.InsertProduction(t, core.Conn(), f.siteIDs[0], 2015, 1000, 1040, 1075, 1130, 1160, 1210, 1230, 1290, 1320, 1360)
	testingpkg.InsertProduction(t, core.Conn(), f.siteIDs[1], 2023, 500, 520)
	first := time.Date(2023, time.March, 4, 0, 0, 0, 0, time.UTC)
	testingpkg.InsertMonthlyReadings(t, core.Conn(), f.siteIDs[0], first, 24, func(i int) (float64, float64, float64) {
		return 90 - float64(i), 1100 - 5*float64(i), 30 + 3*float64(i)
	})
	f.lastDate = first.AddDate(0, 23, 0)

	f.store = NewRepository(forecasts.Conn(), log)
	history := timeseries.NewRepository(core.Conn(), log)
	f.service = NewService(history, f.store, f.sites, f.metrics, log)
	return f
}

func TestRefreshForecasts_StoresRoundedRows(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	res, err := f.service.RefreshForecasts(ctx, f.siteIDs[0], 3, 6)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, MethodETS, res.ProductionBy)
	assert.Equal(t, MethodLinear, res.EnvironmentBy)

	production, err := f.store.Production(ctx, f.siteIDs[0])
	require.NoError(t, err)
	require.Len(t, production, 3)
	assert.Equal(t, []int{2025, 2026, 2027}, []int{production[0].Year, production[1].Year, production[2].Year})
	for _, p := range production {
		assert.Equal(t, formulas.Round(p.Quantity, 2), p.Quantity)
		assert.Equal(t, res.RunID, p.RunID)
	}

	environment, err := f.store.Environment(ctx, f.siteIDs[0])
	require.NoError(t, err)
	require.Len(t, environment, 6)
	assert.Equal(t, AddMonths(f.lastDate, 1), environment[0].Date)
	for _, e := range environment {
		assert.LessOrEqual(t, e.Rehab, RehabCap)
	}
}

func TestRefreshForecasts_Idempotent(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.service.RefreshForecasts(ctx, f.siteIDs[0], 3, 6)
	require.NoError(t, err)
	first, err := f.store.Production(ctx, f.siteIDs[0])
	require.NoError(t, err)
	firstEnv, err := f.store.Environment(ctx, f.siteIDs[0])
	require.NoError(t, err)

	_, err = f.service.RefreshForecasts(ctx, f.siteIDs[0], 3, 6)
	require.NoError(t, err)
	second, err := f.store.Production(ctx, f.siteIDs[0])
	require.NoError(t, err)
	secondEnv, err := f.store.Environment(ctx, f.siteIDs[0])
	require.NoError(t, err)

	require.Len(t, second, len(first))
	require.Len(t, secondEnv, len(firstEnv))
	for i := range first {
		assert.Equal(t, first[i].Year, second[i].Year)
		assert.InDelta(t, first[i].Quantity, second[i].Quantity, 1e-6)
	}
	for i := range firstEnv {
		assert.Equal(t, firstEnv[i].Date, secondEnv[i].Date)
		assert.InDelta(t, firstEnv[i].AQI, secondEnv[i].AQI, 1e-6)
	}

	production, environment, err := f.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, production)
	assert.Equal(t, 6, environment)
}

func TestRefreshForecasts_InsufficientHistoryClearsRows(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	stale := []ProductionForecast{{SiteID: f.siteIDs[1], Year: 2030, Quantity: 1, Method: MethodETS, RunID: "old", CreatedAt: time.Now()}}
	require.NoError(t, f.store.ReplaceForSite(ctx, f.siteIDs[1], stale, nil))

	res, err := f.service.RefreshForecasts(ctx, f.siteIDs[1], 3, 6)
	require.NoError(t, err)
	assert.Empty(t, res.Production)
	assert.Equal(t, MethodNone, res.ProductionBy)

	production, err := f.store.Production(ctx, f.siteIDs[1])
	require.NoError(t, err)
	assert.Empty(t, production)
	assert.Equal(t, 1, f.metrics.counts["production/insufficient"])
	assert.Equal(t, 1, f.metrics.counts["environment/insufficient"])
}

func TestRefreshAll_RecalculatesBands(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.sites.refs[0].Band = domain.BandRed

	summary, err := f.service.RefreshAll(ctx, RefreshOptions{YearsAhead: 2, MonthsAhead: 3, Workers: 2, RecalcBand: true})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Sites)
	// Site 1 lacks both histories, site 2 lacks both, site 0 has both
	assert.Equal(t, 4, summary.Insufficient)
	assert.Zero(t, summary.Fallbacks)

	// Latest reading of site 0 (aqi 67, tds 985, rehab 99, active) scores 76.78
	assert.Equal(t, domain.BandGreen, f.sites.updated[f.siteIDs[0]])
	assert.Equal(t, 1, summary.BandChanges)
	assert.NotContains(t, f.sites.updated, f.siteIDs[1])
}

func TestRefreshAll_SiteFilter(t *testing.T) {
	f := setupService(t)

	summary, err := f.service.RefreshAll(context.Background(), RefreshOptions{YearsAhead: 1, MonthsAhead: 1, SiteIDs: []int64{f.siteIDs[0]}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sites)
	assert.Zero(t, summary.Insufficient)
}
