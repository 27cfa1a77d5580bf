// Package band classifies sites into sustainability bands from their latest
// environmental readings and operational status.
package band

import (
	"github.com/geoeco/tracker/internal/domain"
)

// Score thresholds, inclusive on the higher band.
const (
	GreenThreshold  = 70.0
	YellowThreshold = 50.0
)

const (
	aqiWeight   = 0.35
	tdsWeight   = 0.35
	rehabWeight = 0.30

	activeBonus   = 2.0
	closedPenalty = 5.0
)

// Scores breaks a classification into its components.
type Scores struct {
	AQI   float64     `json:"aqi_score"`
	TDS   float64     `json:"tds_score"`
	Rehab float64     `json:"rehab_score"`
	Total float64     `json:"score"`
	Band  domain.Band `json:"band"`
}

// Classify returns the composite score in [0, 100] and its band.
// Higher AQI and TDS lower the score; rehabilitation progress raises it.
// Active sites get +2, closed sites -5.
func Classify(aqi, tds, rehab float64, status domain.Status) (float64, domain.Band) {
	s := Breakdown(aqi, tds, rehab, status)
	return s.Total, s.Band
}

// Breakdown is Classify with the component scores exposed.
func Breakdown(aqi, tds, rehab float64, status domain.Status) Scores {
	s := Scores{
		AQI:   clip(100-(aqi-40)*1.2, 0, 100),
		TDS:   clip(100-(tds-500)*0.08, 0, 100),
		Rehab: clip(rehab, 0, 100),
	}

	score := aqiWeight*s.AQI + tdsWeight*s.TDS + rehabWeight*s.Rehab
	switch status {
	case domain.StatusActive:
		score += activeBonus
	case domain.StatusClosed:
		score -= closedPenalty
	}
	s.Total = clip(score, 0, 100)
	s.Band = ForScore(s.Total)
	return s
}

// ForScore maps a score to its band.
func ForScore(score float64) domain.Band {
	switch {
	case score >= GreenThreshold:
		return domain.BandGreen
	case score >= YellowThreshold:
		return domain.BandYellow
	default:
		return domain.BandRed
	}
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
