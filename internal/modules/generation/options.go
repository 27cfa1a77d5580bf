// Package generation rebuilds the synthetic Oman site registry: sites spread
// over mineral hotspots, licences, calibrated production history, monthly
// environmental readings and alerts.
package generation

import (
	"fmt"
	"time"
)

// Options controls a generation run.
type Options struct {
	Sites          int     `json:"sites"`
	Companies      int     `json:"companies"`
	Years          int     `json:"years"`
	Monthly        int     `json:"monthly"`
	AlertsPerSite  int     `json:"alerts_per_site"`
	Seed           uint64  `json:"seed"`
	MinKm          float64 `json:"min_km"`
	PerRegionFloor int     `json:"per_region_floor"`
	// TriesPerPoint multiplies a region's request into its sampling budget
	TriesPerPoint int    `json:"tries_per_point"`
	TargetsJSON   string `json:"targets_json,omitempty"`
	WipeCompanies bool   `json:"wipe_companies"`
	// Workers bounds concurrent region sampling; 0 means one per region
	Workers int `json:"workers"`

	// Now anchors every date of the run; zero means time.Now
	Now time.Time `json:"-"`
}

// DefaultOptions returns the standard national dataset settings.
func DefaultOptions() Options {
	return Options{
		Sites:          800,
		Companies:      55,
		Years:          10,
		Monthly:        24,
		AlertsPerSite:  2,
		Seed:           2025,
		MinKm:          10,
		PerRegionFloor: 12,
		TriesPerPoint:  600,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	switch {
	case o.Sites < 0:
		return fmt.Errorf("sites must not be negative, got %d", o.Sites)
	case o.Companies < 1:
		return fmt.Errorf("companies must be at least 1, got %d", o.Companies)
	case o.Years < 1:
		return fmt.Errorf("years must be at least 1, got %d", o.Years)
	case o.Monthly < 0:
		return fmt.Errorf("monthly must not be negative, got %d", o.Monthly)
	case o.AlertsPerSite < 0:
		return fmt.Errorf("alerts must not be negative, got %d", o.AlertsPerSite)
	case o.MinKm < 0:
		return fmt.Errorf("min_km must not be negative, got %g", o.MinKm)
	case o.PerRegionFloor < 0:
		return fmt.Errorf("per_region_floor must not be negative, got %d", o.PerRegionFloor)
	case o.TriesPerPoint < 1:
		return fmt.Errorf("tries_per_point must be at least 1, got %d", o.TriesPerPoint)
	}
	return nil
}
