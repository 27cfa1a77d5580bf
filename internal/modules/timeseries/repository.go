package timeseries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Repository reads and writes production_metrics and environmental_metrics in core.db.
//
// Write methods take a database.Querier so they can join the caller's
// transaction (dataset generation writes everything in one tx). Passing nil
// writes straight to the repository's connection.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new time-series repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "timeseries").Logger(),
	}
}

func (r *Repository) querier(q database.Querier) database.Querier {
	if q == nil {
		return r.db
	}
	return q
}

// InsertProduction upserts annual production rows keyed by (site, year).
func (r *Repository) InsertProduction(ctx context.Context, q database.Querier, points []ProductionPoint) error {
	q = r.querier(q)
	for _, p := range points {
		if p.Quantity < 0 {
			return fmt.Errorf("negative production %.2f for site %d year %d", p.Quantity, p.SiteID, p.Year)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO production_metrics (site_id, year, quantity)
			VALUES (?, ?, ?)
			ON CONFLICT(site_id, year) DO UPDATE SET quantity = excluded.quantity
		`, p.SiteID, p.Year, p.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert production for site %d year %d: %w", p.SiteID, p.Year, err)
		}
	}
	return nil
}

// InsertEnvironment upserts environmental readings keyed by (site, date).
func (r *Repository) InsertEnvironment(ctx context.Context, q database.Querier, readings []EnvReading) error {
	q = r.querier(q)
	for _, e := range readings {
		_, err := q.ExecContext(ctx, `
			INSERT INTO environmental_metrics (site_id, date, air_quality_index, water_tds, rehabilitation_progress)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(site_id, date) DO UPDATE SET
				air_quality_index = excluded.air_quality_index,
				water_tds = excluded.water_tds,
				rehabilitation_progress = excluded.rehabilitation_progress
		`, e.SiteID, e.Date.Format(domain.DateLayout), e.AQI, e.TDS, e.Rehab)
		if err != nil {
			return fmt.Errorf("failed to insert environment for site %d on %s: %w",
				e.SiteID, e.Date.Format(domain.DateLayout), err)
		}
	}
	return nil
}

// ProductionHistory returns a site's production ordered by year.
func (r *Repository) ProductionHistory(ctx context.Context, siteID int64) ([]ProductionPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT site_id, year, quantity FROM production_metrics
		WHERE site_id = ? ORDER BY year ASC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query production history: %w", err)
	}
	defer rows.Close()

	var points []ProductionPoint
	for rows.Next() {
		var p ProductionPoint
		if err := rows.Scan(&p.SiteID, &p.Year, &p.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan production row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// EnvironmentHistory returns a site's readings ordered by date.
func (r *Repository) EnvironmentHistory(ctx context.Context, siteID int64) ([]EnvReading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT site_id, date, air_quality_index, water_tds, rehabilitation_progress
		FROM environmental_metrics
		WHERE site_id = ? ORDER BY date ASC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query environment history: %w", err)
	}
	defer rows.Close()

	var readings []EnvReading
	for rows.Next() {
		e, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, e)
	}
	return readings, rows.Err()
}

// LatestEnvironment returns the most recent reading, or nil when the site has none.
func (r *Repository) LatestEnvironment(ctx context.Context, siteID int64) (*EnvReading, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT site_id, date, air_quality_index, water_tds, rehabilitation_progress
		FROM environmental_metrics
		WHERE site_id = ? ORDER BY date DESC LIMIT 1
	`, siteID)

	e, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LatestYear returns the most recent production year, or 0 without data.
func (r *Repository) LatestYear(ctx context.Context) (int, error) {
	var year sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(year) FROM production_metrics").Scan(&year); err != nil {
		return 0, fmt.Errorf("failed to get latest production year: %w", err)
	}
	return int(year.Int64), nil
}

// ProductionTotalsByMineral sums production per mineral for one year, largest first.
func (r *Repository) ProductionTotalsByMineral(ctx context.Context, year int) ([]MineralTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.mineral, COALESCE(m.unit, 'ton'), SUM(p.quantity), COUNT(*)
		FROM production_metrics p
		JOIN sites s ON s.id = p.site_id
		LEFT JOIN minerals m ON m.name = s.mineral
		WHERE p.year = ? AND s.mineral IS NOT NULL
		GROUP BY s.mineral
		ORDER BY SUM(p.quantity) DESC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query production totals: %w", err)
	}
	defer rows.Close()

	var totals []MineralTotal
	for rows.Next() {
		var t MineralTotal
		if err := rows.Scan(&t.Mineral, &t.Unit, &t.Quantity, &t.Sites); err != nil {
			return nil, fmt.Errorf("failed to scan production total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Counts returns the number of production and environmental rows.
func (r *Repository) Counts(ctx context.Context) (production, environment int, err error) {
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM production_metrics").Scan(&production); err != nil {
		return 0, 0, fmt.Errorf("failed to count production rows: %w", err)
	}
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM environmental_metrics").Scan(&environment); err != nil {
		return 0, 0, fmt.Errorf("failed to count environment rows: %w", err)
	}
	return production, environment, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(s scanner) (EnvReading, error) {
	var (
		e    EnvReading
		date string
	)
	if err := s.Scan(&e.SiteID, &date, &e.AQI, &e.TDS, &e.Rehab); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan environment row: %w", err)
	}
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return e, fmt.Errorf("invalid reading date %q: %w", date, err)
	}
	e.Date = d
	return e, nil
}
