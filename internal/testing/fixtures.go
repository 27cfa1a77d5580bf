package testing

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// SiteFixture describes a site row inserted by InsertSite.
type SiteFixture struct {
	Name        string
	Mineral     string
	Status      string
	Band        string
	Lat         float64
	Lon         float64
	Governorate string
	Wilaya      string
	Region      string
	Geohash     string
}

// NewSiteFixtures returns a small set of sites spread over real Omani locations.
func NewSiteFixtures() []SiteFixture {
	return []SiteFixture{
		{
			Name: "Sohar Copper Site 00001", Mineral: "Copper", Status: "active", Band: "green",
			Lat: 24.20, Lon: 56.60, Governorate: "North Al Batinah", Wilaya: "Sohar",
			Region: "SEMAIL_OPHIOLITE", Geohash: "thnm2hx",
		},
		{
			Name: "Thumrait Gypsum Site 00002", Mineral: "Gypsum", Status: "proposed", Band: "yellow",
			Lat: 17.70, Lon: 54.00, Governorate: "Dhofar", Wilaya: "Thumrait",
			Region: "DHOFAR_GYPSUM", Geohash: "t4vv0wp",
		},
		{
			Name: "Yanqul Gold Site 00003", Mineral: "Gold", Status: "closed", Band: "red",
			Lat: 23.60, Lon: 56.50, Governorate: "Al Dhahirah", Wilaya: "Yanqul",
			Region: "YANQUL_GOLD", Geohash: "thn3gj0",
		},
	}
}

// InsertMinerals seeds the minerals table with the eight tracked minerals.
func InsertMinerals(t *testing.T, db *sql.DB) {
	t.Helper()
	units := map[string]string{
		"Copper": "ton", "Chromite": "ton", "Gypsum": "ton", "Limestone": "ton",
		"Gold": "kg", "Manganese": "ton", "Silica": "ton", "Dolomite": "ton",
	}
	for name, unit := range units {
		if _, err := db.Exec(`INSERT OR IGNORE INTO minerals (name, unit) VALUES (?, ?)`, name, unit); err != nil {
			t.Fatalf("Failed to insert mineral %s: %v", name, err)
		}
	}
}

// InsertCompany inserts a company and returns its id.
func InsertCompany(t *testing.T, db *sql.DB, name string, score float64) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO companies (name, sustainability_score) VALUES (?, ?)`, name, score)
	if err != nil {
		t.Fatalf("Failed to insert company %s: %v", name, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertSite inserts a site row and returns its id. Minerals must exist.
func InsertSite(t *testing.T, db *sql.DB, s SiteFixture) int64 {
	t.Helper()
	if s.Status == "" {
		s.Status = "active"
	}
	if s.Band == "" {
		s.Band = "yellow"
	}
	res, err := db.Exec(`
		INSERT INTO sites (name, mineral, status, band, lat, lon, governorate, wilaya, region, geohash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Name, s.Mineral, s.Status, s.Band, s.Lat, s.Lon, s.Governorate, s.Wilaya, s.Region, s.Geohash, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to insert site %s: %v", s.Name, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertProduction writes one production row per value, starting at firstYear.
func InsertProduction(t *testing.T, db *sql.DB, siteID int64, firstYear int, values ...float64) {
	t.Helper()
	for i, v := range values {
		_, err := db.Exec(`INSERT INTO production_metrics (site_id, year, quantity) VALUES (?, ?, ?)`,
			siteID, firstYear+i, v)
		if err != nil {
			t.Fatalf("Failed to insert production %d: %v", firstYear+i, err)
		}
	}
}

// InsertMonthlyReadings writes n monthly readings starting at first, with
// values produced by fn for month index i.
func InsertMonthlyReadings(t *testing.T, db *sql.DB, siteID int64, first time.Time, n int, fn func(i int) (aqi, tds, rehab float64)) {
	t.Helper()
	for i := 0; i < n; i++ {
		aqi, tds, rehab := fn(i)
		date := first.AddDate(0, i, 0).Format("2006-01-02")
		_, err := db.Exec(`
			INSERT INTO environmental_metrics (site_id, date, air_quality_index, water_tds, rehabilitation_progress)
			VALUES (?, ?, ?, ?, ?)
		`, siteID, date, aqi, tds, rehab)
		if err != nil {
			t.Fatalf("Failed to insert reading %s: %v", date, err)
		}
	}
}

// CountRows returns COUNT(*) of table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
