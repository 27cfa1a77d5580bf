// Package forecast extrapolates site history: annual production with an
// additive-trend exponential smoothing model and monthly environmental
// readings with per-variable linear trends.
package forecast

import "time"

// Method records how a forecast was produced.
type Method string

const (
	// MethodETS is Holt's additive-trend exponential smoothing
	MethodETS Method = "ets"
	// MethodLinear is an ordinary least squares trend per variable
	MethodLinear Method = "linear"
	// MethodFallback repeats the mean of the last three observations
	MethodFallback Method = "fallback_mean"
	// MethodNone means the history was too short to forecast
	MethodNone Method = ""
)

// Outcome buckets a method for metrics: model, fallback or insufficient.
func (m Method) Outcome() string {
	switch m {
	case MethodETS, MethodLinear:
		return "model"
	case MethodFallback:
		return "fallback"
	default:
		return "insufficient"
	}
}

// AnnualPoint is a yearly value
type AnnualPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// MonthlyPoint is a month of environmental values; Date is the first of the month
// for forecasts and the reading day for history.
type MonthlyPoint struct {
	Date  time.Time `json:"date"`
	AQI   float64   `json:"air_quality_index"`
	TDS   float64   `json:"water_tds"`
	Rehab float64   `json:"rehabilitation_progress"`
}

// ProductionForecast is a stored annual forecast row.
type ProductionForecast struct {
	SiteID    int64     `json:"site_id" msgpack:"site_id"`
	Year      int       `json:"year" msgpack:"year"`
	Quantity  float64   `json:"quantity" msgpack:"quantity"`
	Method    Method    `json:"method" msgpack:"method"`
	RunID     string    `json:"run_id" msgpack:"run_id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// EnvironmentForecast is a stored monthly forecast row.
type EnvironmentForecast struct {
	SiteID    int64     `json:"site_id" msgpack:"site_id"`
	Date      time.Time `json:"date" msgpack:"date"`
	AQI       float64   `json:"air_quality_index" msgpack:"aqi"`
	TDS       float64   `json:"water_tds" msgpack:"tds"`
	Rehab     float64   `json:"rehabilitation_progress" msgpack:"rehab"`
	Method    Method    `json:"method" msgpack:"method"`
	RunID     string    `json:"run_id" msgpack:"run_id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}
