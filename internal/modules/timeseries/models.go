// Package timeseries stores observed site history: annual production and
// monthly environmental readings.
package timeseries

import "time"

// ProductionPoint is one site's production for one year, in the mineral's unit.
type ProductionPoint struct {
	SiteID   int64   `json:"site_id" msgpack:"site_id"`
	Year     int     `json:"year" msgpack:"year"`
	Quantity float64 `json:"quantity" msgpack:"quantity"`
}

// EnvReading is one environmental reading of a site.
type EnvReading struct {
	SiteID int64     `json:"site_id" msgpack:"site_id"`
	Date   time.Time `json:"date" msgpack:"date"`
	AQI    float64   `json:"air_quality_index" msgpack:"aqi"`
	TDS    float64   `json:"water_tds" msgpack:"tds"`
	Rehab  float64   `json:"rehabilitation_progress" msgpack:"rehab"`
}

// MineralTotal is the summed production of one mineral for one year.
type MineralTotal struct {
	Mineral  string  `json:"mineral"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Sites    int     `json:"sites"`
}
