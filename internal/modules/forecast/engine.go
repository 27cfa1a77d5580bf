package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/geoeco/tracker/pkg/formulas"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	// MinAnnualHistory is the shortest production history ForecastAnnual accepts.
	MinAnnualHistory = 3
	// MinMonthlyHistory is the shortest reading history ForecastMonthlyMultivariate accepts.
	MinMonthlyHistory = 6
	// FallbackWindow is how many trailing observations the fallback averages.
	FallbackWindow = 3
	// RehabCap bounds rehabilitation progress, a percentage.
	RehabCap = 100.0
)

var errNotConverged = errors.New("smoothing fit did not converge")

// ForecastAnnual extrapolates periodsAhead years past the last observed year.
//
// Fewer than MinAnnualHistory points yield an empty result. A constant history
// forecasts that constant. Otherwise Holt's additive-trend model is fitted by
// minimising the one-step-ahead squared error; when the fit fails the mean of the
// last FallbackWindow values is repeated. Values are floored at 0.
func ForecastAnnual(series []AnnualPoint, periodsAhead int) ([]AnnualPoint, Method) {
	if len(series) < MinAnnualHistory || periodsAhead <= 0 {
		return []AnnualPoint{}, MethodNone
	}

	sorted := make([]AnnualPoint, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = p.Value
	}
	lastYear := sorted[len(sorted)-1].Year

	var (
		projected []float64
		method    = MethodETS
	)
	if formulas.IsConstant(values, 1e-9) {
		projected = repeat(values[len(values)-1], periodsAhead)
	} else if allFinite(values) {
		if model, err := fitHolt(values); err == nil {
			projected = model.forecast(periodsAhead)
		}
	}
	if !allFinite(projected) || len(projected) != periodsAhead {
		projected = repeat(formulas.TrailingMean(values, FallbackWindow), periodsAhead)
		method = MethodFallback
	}

	out := make([]AnnualPoint, periodsAhead)
	for h := range out {
		out[h] = AnnualPoint{Year: lastYear + h + 1, Value: math.Max(0, projected[h])}
	}
	return out, method
}

// ForecastMonthlyMultivariate extrapolates periodsAhead months past the last
// observed month, fitting value = a + b*index independently for AQI, TDS and
// rehabilitation over indexes 0..n-1 and projecting indexes n..n+periodsAhead-1.
//
// Fewer than MinMonthlyHistory points yield an empty result. A failed fit falls
// back to the mean of the last FallbackWindow values for every variable. Values
// are floored at 0 and rehabilitation is capped at RehabCap. Forecast dates are
// first-of-month and advance by calendar month.
func ForecastMonthlyMultivariate(series []MonthlyPoint, periodsAhead int) ([]MonthlyPoint, Method) {
	if len(series) < MinMonthlyHistory || periodsAhead <= 0 {
		return []MonthlyPoint{}, MethodNone
	}

	sorted := make([]MonthlyPoint, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	n := len(sorted)
	x := make([]float64, n)
	vars := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i, p := range sorted {
		x[i] = float64(i)
		vars[0][i], vars[1][i], vars[2][i] = p.AQI, p.TDS, p.Rehab
	}

	var projected [3][]float64
	method := MethodLinear
	for v := range vars {
		alpha, beta, ok := linearTrend(x, vars[v])
		if !ok {
			method = MethodFallback
			break
		}
		projected[v] = make([]float64, periodsAhead)
		for h := range projected[v] {
			projected[v][h] = alpha + beta*float64(n+h)
		}
	}
	if method == MethodFallback {
		for v := range vars {
			projected[v] = repeat(formulas.TrailingMean(vars[v], FallbackWindow), periodsAhead)
		}
	}

	last := sorted[n-1].Date
	out := make([]MonthlyPoint, periodsAhead)
	for h := range out {
		out[h] = MonthlyPoint{
			Date:  AddMonths(last, h+1),
			AQI:   math.Max(0, projected[0][h]),
			TDS:   math.Max(0, projected[1][h]),
			Rehab: formulas.Clamp(projected[2][h], 0, RehabCap),
		}
	}
	return out, method
}

// AddMonths returns the first day of the month n calendar months after t.
func AddMonths(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

func linearTrend(x, y []float64) (alpha, beta float64, ok bool) {
	if !allFinite(y) {
		return 0, 0, false
	}
	alpha, beta = stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return 0, 0, false
	}
	return alpha, beta, true
}

// holt is a fitted additive-trend model; level and trend are the final states.
type holt struct {
	alpha, beta  float64
	level, trend float64
}

func (m holt) forecast(h int) []float64 {
	out := make([]float64, h)
	for i := range out {
		out[i] = m.level + float64(i+1)*m.trend
	}
	return out
}

// run filters y through the model from the given initial states and returns
// the sum of squared one-step errors together with the final states.
func run(y []float64, alpha, beta, level, trend float64) (sse, lastLevel, lastTrend float64) {
	for _, obs := range y {
		pred := level + trend
		e := obs - pred
		sse += e * e
		prev := level
		level = alpha*obs + (1-alpha)*pred
		trend = beta*(level-prev) + (1-beta)*trend
	}
	return sse, level, trend
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

// fitHolt estimates smoothing weights and initial states. Parameters are
// optimised unconstrained: weights through a logistic map, states relative to
// the first observation in units of the series scale.
func fitHolt(y []float64) (holt, error) {
	scale := math.Max(math.Abs(formulas.Mean(y)), 1)

	decode := func(x []float64) (alpha, beta, level, trend float64) {
		return sigmoid(x[0]), sigmoid(x[1]), y[0] + x[2]*scale, x[3] * scale
	}
	objective := func(x []float64) float64 {
		a, b, l, t := decode(x)
		sse, _, _ := run(y, a, b, l, t)
		return sse / (scale * scale)
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}
	initial := []float64{logit(0.5), logit(0.1), 0, (y[1] - y[0]) / scale}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil || !converged(result.Status) {
		// Try with different method
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil {
			return holt{}, fmt.Errorf("smoothing fit failed: %w", err)
		}
		if !converged(result.Status) {
			return holt{}, fmt.Errorf("%w: status=%v", errNotConverged, result.Status)
		}
	}

	a, b, l, t := decode(result.X)
	_, level, trend := run(y, a, b, l, t)
	if !allFinite([]float64{level, trend}) {
		return holt{}, errNotConverged
	}
	return holt{alpha: a, beta: b, level: level, trend: trend}, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
