// Package calibration scales randomly drawn per-site production so that each
// mineral's total matches a national target, then projects a declining,
// noisy history backwards from the scaled value.
package calibration

import (
	"math"
	"math/rand/v2"

	"github.com/geoeco/tracker/internal/domain"
)

const (
	// MinFactor floors the per-category scaling factor.
	MinFactor = 0.1
	// JitterSD is the relative standard deviation applied around a log-uniform draw.
	JitterSD = 0.12

	DefaultPeriods   = 10
	DefaultDecayRate = 0.012
	DefaultNoiseSD   = 0.08
)

// Range bounds a per-site baseline draw.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultRanges are the per-site latest-year production ranges before calibration.
func DefaultRanges() map[domain.Category]Range {
	return map[domain.Category]Range{
		domain.Limestone: {Low: 80_000, High: 450_000},
		domain.Gypsum:    {Low: 60_000, High: 350_000},
		domain.Silica:    {Low: 10_000, High: 60_000},
		domain.Dolomite:  {Low: 10_000, High: 50_000},
		domain.Manganese: {Low: 3_000, High: 25_000},
		domain.Chromite:  {Low: 5_000, High: 60_000},
		domain.Copper:    {Low: 3_000, High: 35_000},
		domain.Gold:      {Low: 8, High: 260},
	}
}

// GlobalWeights is the national preference used when drawing a site's mineral.
func GlobalWeights() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.Copper:    1.10,
		domain.Chromite:  1.00,
		domain.Gold:      0.45,
		domain.Gypsum:    1.10,
		domain.Limestone: 1.60,
		domain.Silica:    1.00,
		domain.Dolomite:  0.85,
		domain.Manganese: 0.55,
	}
}

// RandRange draws a positively skewed value in [low, high]: a log-uniform base
// with Gaussian jitter of JitterSD*base, clamped back into the range.
func RandRange(rng *rand.Rand, low, high float64) float64 {
	lo := math.Log(math.Max(1, low))
	hi := math.Log(math.Max(1, high))
	base := math.Exp(lo + rng.Float64()*(hi-lo))
	v := base + rng.NormFloat64()*base*JitterSD
	return math.Max(low, math.Min(high, v))
}

// Entity is one site to calibrate.
type Entity struct {
	ID       string
	Category domain.Category
}

// Options tunes the backward projection.
type Options struct {
	// Periods is the series length, latest period included.
	Periods   int
	DecayRate float64
	NoiseSD   float64
}

func (o Options) withDefaults() Options {
	if o.Periods <= 0 {
		o.Periods = DefaultPeriods
	}
	if o.DecayRate == 0 {
		o.DecayRate = DefaultDecayRate
	}
	if o.NoiseSD == 0 {
		o.NoiseSD = DefaultNoiseSD
	}
	return o
}

// Calibrated is the outcome for one entity.
type Calibrated struct {
	Entity   Entity
	Baseline float64
	// Latest is Baseline scaled by the category factor, before noise.
	Latest float64
	// Series runs from the latest period backwards; Series[k] is k periods ago.
	Series []float64
}

// Result holds calibrated entities in input order plus per-category figures.
type Result struct {
	Entities []Calibrated
	Sums     map[domain.Category]float64
	Factors  map[domain.Category]float64
}

// Calibrate draws a baseline per entity from its category range, computes the
// factor max(MinFactor, target/sum) per category (a missing target means the
// sum itself, a zero sum counts as 1), and projects each scaled value back
// over opts.Periods periods as latest*(1-decay*k)*N(1, noiseSD), floored at 0.
//
// Entities whose category has no range get a zero baseline. Draw order is
// every baseline in entity order, then every series in entity order, so a
// fixed seed reproduces the result exactly.
func Calibrate(rng *rand.Rand, entities []Entity, ranges map[domain.Category]Range, targets Targets, opts Options) Result {
	opts = opts.withDefaults()

	res := Result{
		Entities: make([]Calibrated, len(entities)),
		Sums:     make(map[domain.Category]float64),
		Factors:  make(map[domain.Category]float64),
	}

	for i, e := range entities {
		var base float64
		if r, ok := ranges[e.Category]; ok {
			base = RandRange(rng, r.Low, r.High)
		}
		res.Entities[i] = Calibrated{Entity: e, Baseline: base}
		res.Sums[e.Category] += base
	}

	for c, sum := range res.Sums {
		res.Factors[c] = Factor(sum, targets, c)
	}

	for i := range res.Entities {
		ce := &res.Entities[i]
		ce.Latest = ce.Baseline * res.Factors[ce.Entity.Category]
		ce.Series = ProjectSeries(rng, ce.Latest, opts)
	}

	return res
}

// Factor returns the scaling factor that maps sum onto the category target.
func Factor(sum float64, targets Targets, c domain.Category) float64 {
	if sum == 0 {
		sum = 1
	}
	target, ok := targets[c]
	if !ok {
		target = sum
	}
	return math.Max(MinFactor, target/sum)
}

// ProjectSeries builds a series of opts.Periods values backwards from latest.
func ProjectSeries(rng *rand.Rand, latest float64, opts Options) []float64 {
	opts = opts.withDefaults()
	series := make([]float64, opts.Periods)
	for k := range series {
		drift := 1 - opts.DecayRate*float64(k)
		noise := 1 + rng.NormFloat64()*opts.NoiseSD
		series[k] = math.Max(0, latest*drift*noise)
	}
	return series
}
