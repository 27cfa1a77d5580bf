package forecast

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Repository stores forecast rows in forecasts.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new forecast repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "forecast").Logger(),
	}
}

// ReplaceForSite swaps a site's forecast rows for the given ones inside a single
// transaction, so readers see either the old set or the new one.
func (r *Repository) ReplaceForSite(ctx context.Context, siteID int64, production []ProductionForecast, environment []EnvironmentForecast) error {
	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM forecast_production WHERE site_id = ?", siteID); err != nil {
			return fmt.Errorf("failed to delete production forecasts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM forecast_environment WHERE site_id = ?", siteID); err != nil {
			return fmt.Errorf("failed to delete environment forecasts: %w", err)
		}

		for _, p := range production {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO forecast_production (site_id, year, quantity, method, run_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, siteID, p.Year, p.Quantity, string(p.Method), p.RunID, p.CreatedAt.Unix())
			if err != nil {
				return fmt.Errorf("failed to insert production forecast %d: %w", p.Year, err)
			}
		}

		for _, e := range environment {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO forecast_environment
				(site_id, date, air_quality_index, water_tds, rehabilitation_progress, method, run_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, siteID, e.Date.Format(domain.DateLayout), e.AQI, e.TDS, e.Rehab, string(e.Method), e.RunID, e.CreatedAt.Unix())
			if err != nil {
				return fmt.Errorf("failed to insert environment forecast %s: %w", e.Date.Format(domain.DateLayout), err)
			}
		}
		return nil
	})
}

// Production returns a site's annual forecasts ordered by year.
func (r *Repository) Production(ctx context.Context, siteID int64) ([]ProductionForecast, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT site_id, year, quantity, method, run_id, created_at
		FROM forecast_production WHERE site_id = ? ORDER BY year ASC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query production forecasts: %w", err)
	}
	defer rows.Close()

	out := []ProductionForecast{}
	for rows.Next() {
		var (
			p         ProductionForecast
			method    string
			createdAt int64
		)
		if err := rows.Scan(&p.SiteID, &p.Year, &p.Quantity, &method, &p.RunID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan production forecast: %w", err)
		}
		p.Method = Method(method)
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// Environment returns a site's monthly forecasts ordered by date.
func (r *Repository) Environment(ctx context.Context, siteID int64) ([]EnvironmentForecast, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT site_id, date, air_quality_index, water_tds, rehabilitation_progress, method, run_id, created_at
		FROM forecast_environment WHERE site_id = ? ORDER BY date ASC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query environment forecasts: %w", err)
	}
	defer rows.Close()

	out := []EnvironmentForecast{}
	for rows.Next() {
		var (
			e         EnvironmentForecast
			date      string
			method    string
			createdAt int64
		)
		if err := rows.Scan(&e.SiteID, &date, &e.AQI, &e.TDS, &e.Rehab, &method, &e.RunID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan environment forecast: %w", err)
		}
		if e.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid forecast date %q: %w", date, err)
		}
		e.Method = Method(method)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of stored production and environment forecast rows.
func (r *Repository) Counts(ctx context.Context) (production, environment int, err error) {
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forecast_production").Scan(&production); err != nil {
		return 0, 0, fmt.Errorf("failed to count production forecasts: %w", err)
	}
	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forecast_environment").Scan(&environment); err != nil {
		return 0, 0, fmt.Errorf("failed to count environment forecasts: %w", err)
	}
	return production, environment, nil
}

// DeleteAll removes every forecast row. Used when the site registry is regenerated.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"forecast_production", "forecast_environment"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		r.log.Info().Msg("Cleared all forecasts")
		return nil
	})
}
