// Package sites is the registry of mining sites, their operators, licences and alerts.
package sites

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/regions"
)

var (
	// ErrNotFound is returned when a site does not exist
	ErrNotFound = errors.New("site not found")
	// ErrInvalidSite wraps every validation failure
	ErrInvalidSite = errors.New("invalid site")
)

// GeohashPrecision is the stored geohash length (~150 m cells).
const GeohashPrecision = 7

// Company operates sites.
type Company struct {
	ID                  int64   `json:"id" msgpack:"id"`
	Name                string  `json:"name" msgpack:"name"`
	SustainabilityScore float64 `json:"sustainability_score" msgpack:"sustainability_score"`
}

// Mineral is a tracked mineral and the unit its production is recorded in.
type Mineral struct {
	Name domain.Category `json:"name" msgpack:"name"`
	Unit domain.Unit     `json:"unit" msgpack:"unit"`
}

// Site is a mining site.
type Site struct {
	ID          int64           `json:"id" msgpack:"id"`
	Name        string          `json:"name" msgpack:"name"`
	CompanyID   *int64          `json:"company_id,omitempty" msgpack:"company_id"`
	CompanyName string          `json:"company,omitempty" msgpack:"company"`
	Mineral     domain.Category `json:"mineral" msgpack:"mineral"`
	Status      domain.Status   `json:"status" msgpack:"status"`
	Band        domain.Band     `json:"band" msgpack:"band"`
	Lat         float64         `json:"lat" msgpack:"lat"`
	Lon         float64         `json:"lon" msgpack:"lon"`
	Governorate string          `json:"governorate" msgpack:"governorate"`
	Wilaya      string          `json:"wilaya" msgpack:"wilaya"`
	Region      string          `json:"region,omitempty" msgpack:"region"`
	Geohash     string          `json:"geohash" msgpack:"geohash"`
	CreatedAt   time.Time       `json:"created_at" msgpack:"created_at"`
}

// Validate checks the site's vocabulary and that it lies inside the country.
// A nil catalog skips the boundary test but not the coarse bounds box.
func (s *Site) Validate(catalog *regions.Catalog) error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSite)
	case !s.Mineral.Valid():
		return fmt.Errorf("%w: unknown mineral %q", ErrInvalidSite, s.Mineral)
	case !s.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSite, s.Status)
	case !s.Band.Valid():
		return fmt.Errorf("%w: unknown band %q", ErrInvalidSite, s.Band)
	case !regions.OmanBounds.Contains(s.Lat, s.Lon):
		return fmt.Errorf("%w: (%.6f, %.6f) is outside the Oman bounds", ErrInvalidSite, s.Lat, s.Lon)
	case catalog != nil && !catalog.PointInCountry(s.Lat, s.Lon):
		return fmt.Errorf("%w: (%.6f, %.6f) is outside the country boundary", ErrInvalidSite, s.Lat, s.Lon)
	}
	return nil
}

// License is a mining licence attached to a site.
type License struct {
	ID        int64     `json:"id" msgpack:"id"`
	SiteID    int64     `json:"site_id" msgpack:"site_id"`
	Number    string    `json:"license_no" msgpack:"license_no"`
	IssuedOn  time.Time `json:"issued_on" msgpack:"issued_on"`
	ExpiresOn time.Time `json:"expires_on" msgpack:"expires_on"`
}

// Alert is an operational notice raised for a site.
type Alert struct {
	ID        int64             `json:"id" msgpack:"id"`
	SiteID    int64             `json:"site_id" msgpack:"site_id"`
	SiteName  string            `json:"site,omitempty" msgpack:"site"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
	Level     domain.AlertLevel `json:"level" msgpack:"level"`
	Message   string            `json:"message" msgpack:"message"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Mineral       domain.Category
	Status        domain.Status
	Band          domain.Band
	Governorate   string
	GeohashPrefix string
	Limit         int
	Offset        int
}
