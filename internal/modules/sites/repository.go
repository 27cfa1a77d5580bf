package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"
)

// siteColumns must match scanSite
const siteColumns = `s.id, s.name, s.company_id, COALESCE(c.name, ''), COALESCE(s.mineral, ''), s.status, s.band,
s.lat, s.lon, s.governorate, s.wilaya, s.region, s.geohash, s.created_at`

const siteFrom = ` FROM sites s LEFT JOIN companies c ON c.id = s.company_id`

// Repository handles the site registry in core.db.
//
// Write methods take a database.Querier so dataset generation can run them in
// one transaction; nil means the repository's own connection.
type Repository struct {
	db      *sql.DB
	catalog *regions.Catalog
	log     zerolog.Logger
}

// NewRepository creates a new site repository. Sites are validated against catalog's boundary.
func NewRepository(db *sql.DB, catalog *regions.Catalog, log zerolog.Logger) *Repository {
	return &Repository{
		db:      db,
		catalog: catalog,
		log:     log.With().Str("repo", "sites").Logger(),
	}
}

func (r *Repository) querier(q database.Querier) database.Querier {
	if q == nil {
		return r.db
	}
	return q
}

// EnsureMinerals inserts every known mineral with its unit, leaving existing rows alone.
func (r *Repository) EnsureMinerals(ctx context.Context, q database.Querier) error {
	q = r.querier(q)
	for _, c := range domain.Categories {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO minerals (name, unit) VALUES (?, ?)`, string(c), string(c.Unit())); err != nil {
			return fmt.Errorf("failed to ensure mineral %s: %w", c, err)
		}
	}
	return nil
}

// Minerals lists the stored minerals by name.
func (r *Repository) Minerals(ctx context.Context) ([]Mineral, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, unit FROM minerals ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query minerals: %w", err)
	}
	defer rows.Close()

	var out []Mineral
	for rows.Next() {
		var name, unit string
		if err := rows.Scan(&name, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan mineral: %w", err)
		}
		out = append(out, Mineral{Name: domain.Category(name), Unit: domain.Unit(unit)})
	}
	return out, rows.Err()
}

// CreateCompany inserts a company, or reuses the existing row with the same name,
// and populates c.ID.
func (r *Repository) CreateCompany(ctx context.Context, q database.Querier, c *Company) error {
	q = r.querier(q)
	err := q.QueryRowContext(ctx, `
		INSERT INTO companies (name, sustainability_score) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET sustainability_score = excluded.sustainability_score
		RETURNING id
	`, c.Name, c.SustainabilityScore).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create company %s: %w", c.Name, err)
	}
	return nil
}

// ListCompanies returns every company by id.
func (r *Repository) ListCompanies(ctx context.Context, q database.Querier) ([]Company, error) {
	rows, err := r.querier(q).QueryContext(ctx, "SELECT id, name, sustainability_score FROM companies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.SustainabilityScore); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateSite validates and inserts a site, filling ID, Geohash and CreatedAt.
func (r *Repository) CreateSite(ctx context.Context, q database.Querier, s *Site) error {
	if err := s.Validate(r.catalog); err != nil {
		return err
	}
	s.Geohash = geohash.EncodeWithPrecision(s.Lat, s.Lon, GeohashPrecision)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	res, err := r.querier(q).ExecContext(ctx, `
		INSERT INTO sites (name, company_id, mineral, status, band, lat, lon, governorate, wilaya, region, geohash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Name, nullInt64(s.CompanyID), string(s.Mineral), string(s.Status), string(s.Band),
		s.Lat, s.Lon, s.Governorate, s.Wilaya, s.Region, s.Geohash, s.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create site %s: %w", s.Name, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get site ID: %w", err)
	}
	return nil
}

// Get returns one site or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*Site, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+siteColumns+siteFrom+" WHERE s.id = ?", id)
	s, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %d: %w", id, err)
	}
	return &s, nil
}

// List returns sites matching f, ordered by id.
func (r *Repository) List(ctx context.Context, f Filter) ([]Site, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Mineral != "" {
		where = append(where, "s.mineral = ?")
		args = append(args, string(f.Mineral))
	}
	if f.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Band != "" {
		where = append(where, "s.band = ?")
		args = append(args, string(f.Band))
	}
	if f.Governorate != "" {
		where = append(where, "s.governorate = ?")
		args = append(args, f.Governorate)
	}
	if f.GeohashPrefix != "" {
		where = append(where, "s.geohash LIKE ?")
		args = append(args, strings.ToLower(f.GeohashPrefix)+"%")
	}

	query := "SELECT " + siteColumns + siteFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(0, f.Offset))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	out := []Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateBand sets a site's band.
func (r *Repository) UpdateBand(ctx context.Context, id int64, b domain.Band) error {
	if !b.Valid() {
		return fmt.Errorf("%w: unknown band %q", ErrInvalidSite, b)
	}
	res, err := r.db.ExecContext(ctx, "UPDATE sites SET band = ? WHERE id = ?", string(b), id)
	if err != nil {
		return fmt.Errorf("failed to update band of site %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of sites.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sites").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

// CountByBand returns the number of sites per band; every band is present.
func (r *Repository) CountByBand(ctx context.Context) (map[domain.Band]int, error) {
	counts := make(map[domain.Band]int, len(domain.Bands))
	for _, b := range domain.Bands {
		counts[b] = 0
	}

	rows, err := r.db.QueryContext(ctx, "SELECT band, COUNT(*) FROM sites GROUP BY band")
	if err != nil {
		return nil, fmt.Errorf("failed to count sites by band: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b string
			n int
		)
		if err := rows.Scan(&b, &n); err != nil {
			return nil, fmt.Errorf("failed to scan band count: %w", err)
		}
		counts[domain.Band(b)] = n
	}
	return counts, rows.Err()
}

// CreateLicense inserts a licence and populates l.ID.
func (r *Repository) CreateLicense(ctx context.Context, q database.Querier, l *License) error {
	res, err := r.querier(q).ExecContext(ctx, `
		INSERT INTO licenses (site_id, license_no, issued_on, expires_on) VALUES (?, ?, ?, ?)
	`, l.SiteID, l.Number, l.IssuedOn.Format(domain.DateLayout), l.ExpiresOn.Format(domain.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to create licence %s: %w", l.Number, err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// Licenses returns a site's licences, most recently issued first.
func (r *Repository) Licenses(ctx context.Context, siteID int64) ([]License, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, site_id, license_no, issued_on, expires_on
		FROM licenses WHERE site_id = ? ORDER BY issued_on DESC, id DESC
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query licences: %w", err)
	}
	defer rows.Close()

	out := []License{}
	for rows.Next() {
		var (
			lic             License
			issued, expires string
		)
		if err := rows.Scan(&lic.ID, &lic.SiteID, &lic.Number, &issued, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan licence: %w", err)
		}
		if lic.IssuedOn, err = time.Parse(domain.DateLayout, issued); err != nil {
			return nil, fmt.Errorf("invalid issue date %q: %w", issued, err)
		}
		if lic.ExpiresOn, err = time.Parse(domain.DateLayout, expires); err != nil {
			return nil, fmt.Errorf("invalid expiry date %q: %w", expires, err)
		}
		out = append(out, lic)
	}
	return out, rows.Err()
}

// CreateAlert inserts an alert and populates a.ID.
func (r *Repository) CreateAlert(ctx context.Context, q database.Querier, a *Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := r.querier(q).ExecContext(ctx, `
		INSERT INTO alerts (site_id, created_at, level, message) VALUES (?, ?, ?, ?)
	`, a.SiteID, a.CreatedAt.Unix(), string(a.Level), a.Message)
	if err != nil {
		return fmt.Errorf("failed to create alert for site %d: %w", a.SiteID, err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// LatestAlerts returns the newest alerts across all sites, or one site when siteID > 0.
func (r *Repository) LatestAlerts(ctx context.Context, siteID int64, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT a.id, a.site_id, s.name, a.created_at, a.level, a.message
		FROM alerts a JOIN sites s ON s.id = a.site_id`
	args := []interface{}{}
	if siteID > 0 {
		query += " WHERE a.site_id = ?"
		args = append(args, siteID)
	}
	query += " ORDER BY a.created_at DESC, a.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	out := []Alert{}
	for rows.Next() {
		var (
			a       Alert
			created int64
			level   string
		)
		if err := rows.Scan(&a.ID, &a.SiteID, &a.SiteName, &created, &level, &a.Message); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		a.Level = domain.AlertLevel(level)
		out = append(out, a)
	}
	return out, rows.Err()
}

// WipeSites deletes every site; licences, alerts and history cascade.
func (r *Repository) WipeSites(ctx context.Context, q database.Querier) (int64, error) {
	res, err := r.querier(q).ExecContext(ctx, "DELETE FROM sites")
	if err != nil {
		return 0, fmt.Errorf("failed to wipe sites: %w", err)
	}
	n, _ := res.RowsAffected()
	r.log.Info().Int64("deleted", n).Msg("Wiped sites")
	return n, nil
}

// WipeCompanies deletes every company.
func (r *Repository) WipeCompanies(ctx context.Context, q database.Querier) (int64, error) {
	res, err := r.querier(q).ExecContext(ctx, "DELETE FROM companies")
	if err != nil {
		return 0, fmt.Errorf("failed to wipe companies: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSite(row scanner) (Site, error) {
	var (
		s                     Site
		companyID             sql.NullInt64
		mineral, status, band string
		createdAt             int64
	)
	err := row.Scan(&s.ID, &s.Name, &companyID, &s.CompanyName, &mineral, &status, &band,
		&s.Lat, &s.Lon, &s.Governorate, &s.Wilaya, &s.Region, &s.Geohash, &createdAt)
	if err != nil {
		return s, err
	}
	if companyID.Valid {
		id := companyID.Int64
		s.CompanyID = &id
	}
	s.Mineral = domain.Category(mineral)
	s.Status = domain.Status(status)
	s.Band = domain.Band(band)
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
