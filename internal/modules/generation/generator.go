package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/geoeco/tracker/internal/admin"
	"github.com/geoeco/tracker/internal/calibration"
	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/geoeco/tracker/internal/sampling"
	"github.com/geoeco/tracker/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ForecastStore is cleared after a regeneration since its rows key on old site ids.
type ForecastStore interface {
	DeleteAll(ctx context.Context) error
}

// MetricsRecorder receives generation outcomes
type MetricsRecorder interface {
	RecordShortfall(region string, missing int)
	SetSites(n int)
}

// Report summarises a generation run.
type Report struct {
	RunID       string                      `json:"run_id"`
	Requested   int                         `json:"sites_requested"`
	Created     int                         `json:"sites_created"`
	Shortfall   map[string]int              `json:"shortfall,omitempty"`
	Companies   int                         `json:"companies"`
	Production  int                         `json:"production_rows"`
	Environment int                         `json:"environment_rows"`
	Alerts      int                         `json:"alerts"`
	Factors     map[domain.Category]float64 `json:"factors"`
	Duration    time.Duration               `json:"duration_ns"`
}

// Generator rebuilds the core dataset.
type Generator struct {
	core      *sql.DB
	sites     *sites.Repository
	series    *timeseries.Repository
	forecasts ForecastStore
	catalog   *regions.Catalog
	resolver  *admin.Resolver
	metrics   MetricsRecorder
	log       zerolog.Logger
}

// NewGenerator creates a generator. forecasts and metrics may be nil.
func NewGenerator(
	core *sql.DB,
	siteRepo *sites.Repository,
	series *timeseries.Repository,
	forecasts ForecastStore,
	catalog *regions.Catalog,
	resolver *admin.Resolver,
	metrics MetricsRecorder,
	log zerolog.Logger,
) *Generator {
	return &Generator{
		core:      core,
		sites:     siteRepo,
		series:    series,
		forecasts: forecasts,
		catalog:   catalog,
		resolver:  resolver,
		metrics:   metrics,
		log:       log.With().Str("component", "generator").Logger(),
	}
}

// Generate wipes every site and its history and creates a fresh dataset.
//
// Point placement runs per region concurrently before any write; everything
// else is drawn from one seeded source in a fixed order and written in a single
// transaction, so a failed run leaves the previous dataset intact and a given
// seed and clock reproduce the same rows.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	started := time.Now()

	targets, err := calibration.ParseTargetsOverride(opts.TargetsJSON)
	if err != nil {
		g.log.Warn().Err(err).Msg("Ignoring targets override, using national defaults")
	}

	report := &Report{RunID: uuid.NewString(), Requested: opts.Sites, Shortfall: map[string]int{}}
	log := g.log.With().Str("run_id", report.RunID).Uint64("seed", opts.Seed).Logger()
	log.Info().Int("sites", opts.Sites).Float64("min_km", opts.MinKm).Msg("Generating dataset")

	allocations := sampling.AllocateSites(g.catalog.Regions(), opts.Sites, opts.PerRegionFloor)
	placed, err := sampling.SpreadAcrossRegions(ctx, g.catalog, allocations, sampling.SpreadOptions{
		MinSeparationKm: opts.MinKm,
		TriesPerPoint:   opts.TriesPerPoint,
		Seed:            opts.Seed,
		Workers:         opts.Workers,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to place sites: %w", err)
	}
	for _, rp := range placed {
		if miss := rp.Shortfall(); miss > 0 {
			report.Shortfall[rp.Region.Name] = miss
			log.Warn().
				Str("region", rp.Region.Name).
				Int("placed", len(rp.Points)).
				Int("requested", rp.Requested).
				Msg("Could not place every requested site")
			if g.metrics != nil {
				g.metrics.RecordShortfall(rp.Region.Name, miss)
			}
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x6a09e667f3bcc909))

	err = database.WithTransactionContext(ctx, g.core, func(tx *sql.Tx) error {
		if _, err := g.sites.WipeSites(ctx, tx); err != nil {
			return err
		}
		if opts.WipeCompanies {
			if _, err := g.sites.WipeCompanies(ctx, tx); err != nil {
				return err
			}
		}
		if err := g.sites.EnsureMinerals(ctx, tx); err != nil {
			return err
		}

		companies, err := g.ensureCompanies(ctx, tx, rng, opts.Companies)
		if err != nil {
			return err
		}
		report.Companies = len(companies)

		created, err := g.createSites(ctx, tx, rng, placed, companies, now)
		if err != nil {
			return err
		}
		report.Created = len(created)

		if report.Production, report.Factors, err = g.createProduction(ctx, tx, rng, created, targets, opts.Years, now); err != nil {
			return err
		}
		if report.Environment, err = g.createReadings(ctx, tx, rng, created, opts.Monthly, now); err != nil {
			return err
		}
		if report.Alerts, err = g.createAlerts(ctx, tx, rng, created, opts.AlertsPerSite, now); err != nil {
			return err
		}

		report.Duration = time.Since(started)
		return recordRun(ctx, tx, report, opts, started)
	})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	if g.forecasts != nil {
		if err := g.forecasts.DeleteAll(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear stale forecasts")
		}
	}
	if g.metrics != nil {
		g.metrics.SetSites(report.Created)
	}

	log.Info().
		Int("sites", report.Created).
		Int("production", report.Production).
		Int("environment", report.Environment).
		Int("alerts", report.Alerts).
		Dur("duration", report.Duration).
		Msg("Dataset generated")

	return report, nil
}

func (g *Generator) ensureCompanies(ctx context.Context, tx *sql.Tx, rng *rand.Rand, want int) ([]sites.Company, error) {
	companies, err := g.sites.ListCompanies(ctx, tx)
	if err != nil {
		return nil, err
	}
	for len(companies) < want {
		c := sites.Company{
			Name:                fmt.Sprintf("Company %03d", len(companies)+1),
			SustainabilityScore: formulas.Round(60+rng.Float64()*32, 2),
		}
		if err := g.sites.CreateCompany(ctx, tx, &c); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, nil
}

func (g *Generator) createSites(ctx context.Context, tx *sql.Tx, rng *rand.Rand, placed []sampling.RegionPoints, companies []sites.Company, now time.Time) ([]*sites.Site, error) {
	global := calibration.GlobalWeights()
	var created []*sites.Site

	for _, rp := range placed {
		weights := localMineralWeights(global, rp.Region.Categories)

		for _, p := range rp.Points {
			mineral := domain.Categories[sampling.WeightedIndex(rng, weights)]
			governorate, wilaya := g.resolver.Resolve(p.Lat, p.Lon)
			company := companies[rng.IntN(len(companies))]

			s := &sites.Site{
				Name:        fmt.Sprintf("%s %s Site %05d", governorate, mineral, len(created)+1),
				CompanyID:   &company.ID,
				Mineral:     mineral,
				Status:      drawStatus(rng),
				Band:        drawBand(rng, mineral),
				Lat:         p.Lat,
				Lon:         p.Lon,
				Governorate: governorate,
				Wilaya:      wilaya,
				Region:      rp.Region.Name,
				CreatedAt:   now,
			}
			if err := g.sites.CreateSite(ctx, tx, s); err != nil {
				return nil, err
			}
			created = append(created, s)

			issued := time.Date(now.Year()-randInt(rng, 0, licenceMaxAgeYears), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			licence := &sites.License{
				SiteID:    s.ID,
				Number:    fmt.Sprintf("OM-%d-%s-%06d", issued.Year(), strings.ToUpper(string(mineral)[:3]), len(created)),
				IssuedOn:  issued,
				ExpiresOn: issued.AddDate(randInt(rng, licenceMinYears, licenceMaxYears), 0, 0),
			}
			if err := g.sites.CreateLicense(ctx, tx, licence); err != nil {
				return nil, err
			}
		}
	}
	return created, nil
}

func (g *Generator) createProduction(ctx context.Context, tx *sql.Tx, rng *rand.Rand, created []*sites.Site, targets calibration.Targets, years int, now time.Time) (int, map[domain.Category]float64, error) {
	entities := make([]calibration.Entity, len(created))
	for i, s := range created {
		entities[i] = calibration.Entity{ID: strconv.FormatInt(s.ID, 10), Category: s.Mineral}
	}
	res := calibration.Calibrate(rng, entities, calibration.DefaultRanges(), targets, calibration.Options{Periods: years})

	rows := 0
	for i, ce := range res.Entities {
		points := make([]timeseries.ProductionPoint, len(ce.Series))
		for k, v := range ce.Series {
			points[k] = timeseries.ProductionPoint{SiteID: created[i].ID, Year: now.Year() - k, Quantity: formulas.Round(v, 2)}
		}
		if err := g.series.InsertProduction(ctx, tx, points); err != nil {
			return 0, nil, err
		}
		rows += len(points)
	}
	return rows, res.Factors, nil
}

func (g *Generator) createReadings(ctx context.Context, tx *sql.Tx, rng *rand.Rand, created []*sites.Site, monthly int, now time.Time) (int, error) {
	start := now.AddDate(0, 0, -readingSpacingDays*monthly)
	rows := 0
	for _, s := range created {
		readings := make([]timeseries.EnvReading, monthly)
		for m := range readings {
			offset := readingSpacingDays*m + randInt(rng, 0, readingJitterDays)
			d := start.AddDate(0, 0, offset)
			aqi, tds, rehab := drawReading(rng, s.Mineral, s.Band, s.Status)
			readings[m] = timeseries.EnvReading{
				SiteID: s.ID,
				Date:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
				AQI:    aqi,
				TDS:    tds,
				Rehab:  rehab,
			}
		}
		if err := g.series.InsertEnvironment(ctx, tx, readings); err != nil {
			return 0, err
		}
		rows += monthly
	}
	return rows, nil
}

func (g *Generator) createAlerts(ctx context.Context, tx *sql.Tx, rng *rand.Rand, created []*sites.Site, perSite int, now time.Time) (int, error) {
	rows := 0
	for _, s := range created {
		for i := 0; i < perSite; i++ {
			a := &sites.Alert{
				SiteID:    s.ID,
				Level:     alertLevels[sampling.WeightedIndex(rng, alertWeights)],
				Message:   alertMessages[rng.IntN(len(alertMessages))],
				CreatedAt: now.AddDate(0, 0, -randInt(rng, 0, alertMaxAgeDays)),
			}
			if err := g.sites.CreateAlert(ctx, tx, a); err != nil {
				return 0, err
			}
			rows++
		}
	}
	return rows, nil
}

func recordRun(ctx context.Context, tx *sql.Tx, report *Report, opts Options, started time.Time) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode run options: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO generation_runs (id, started_at, finished_at, seed, sites_requested, sites_created, options)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, started.Unix(), time.Now().Unix(), int64(opts.Seed), opts.Sites, report.Created, string(raw))
	if err != nil {
		return fmt.Errorf("failed to record generation run: %w", err)
	}
	return nil
}

// Run is a recorded generation run.
type Run struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Seed           uint64    `json:"seed"`
	SitesRequested int       `json:"sites_requested"`
	SitesCreated   int       `json:"sites_created"`
	Options        Options   `json:"options"`
}

// LastRun returns the most recent generation run, or nil when none was recorded.
func (g *Generator) LastRun(ctx context.Context) (*Run, error) {
	var (
		run               Run
		started, finished int64
		seed              int64
		raw               string
	)
	err := g.core.QueryRowContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, started_at), seed, sites_requested, sites_created, options
		FROM generation_runs ORDER BY started_at DESC, rowid DESC LIMIT 1
	`).Scan(&run.ID, &started, &finished, &seed, &run.SitesRequested, &run.SitesCreated, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last generation run: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &run.Options); err != nil {
		return nil, fmt.Errorf("failed to decode run options: %w", err)
	}
	run.StartedAt = time.Unix(started, 0).UTC()
	run.FinishedAt = time.Unix(finished, 0).UTC()
	run.Seed = uint64(seed)
	return &run, nil
}
