package calibration

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func entities(n int, c domain.Category) []Entity {
	out := make([]Entity, n)
	for i := range out {
		out[i] = Entity{ID: fmt.Sprintf("site-%d", i), Category: c}
	}
	return out
}

func TestRandRange_StaysInRange(t *testing.T) {
	rng := seeded(1)

	for _, r := range DefaultRanges() {
		for i := 0; i < 500; i++ {
			v := RandRange(rng, r.Low, r.High)
			assert.GreaterOrEqual(t, v, r.Low)
			assert.LessOrEqual(t, v, r.High)
		}
	}
}

func TestRandRange_SubUnitLowBound(t *testing.T) {
	rng := seeded(2)

	// ln(max(1, 0.2)) = 0, so the base never drops under 1 before clamping.
	for i := 0; i < 200; i++ {
		v := RandRange(rng, 0.2, 5)
		assert.GreaterOrEqual(t, v, 0.2)
		assert.LessOrEqual(t, v, 5.0)
	}
}

func TestCalibrate_LatestSumMatchesTarget(t *testing.T) {
	targets := Targets{domain.Limestone: 25_000_000}

	res := Calibrate(seeded(2025), entities(120, domain.Limestone), DefaultRanges(), targets, Options{})

	sum := 0.0
	for _, e := range res.Entities {
		sum += e.Latest
	}
	assert.InDelta(t, 25_000_000, sum, 1e-3)
	assert.InDelta(t, 25_000_000/res.Sums[domain.Limestone], res.Factors[domain.Limestone], 1e-12)
}

func TestCalibrate_FactorFloor(t *testing.T) {
	// A tiny target would shrink everything; the factor stops at 0.1.
	targets := Targets{domain.Copper: 1}

	res := Calibrate(seeded(3), entities(40, domain.Copper), DefaultRanges(), targets, Options{})

	assert.Equal(t, MinFactor, res.Factors[domain.Copper])
	sum := 0.0
	for _, e := range res.Entities {
		sum += e.Latest
	}
	assert.InDelta(t, res.Sums[domain.Copper]*MinFactor, sum, 1e-6)
}

func TestCalibrate_MissingTargetKeepsSum(t *testing.T) {
	res := Calibrate(seeded(4), entities(10, domain.Manganese), DefaultRanges(), Targets{}, Options{})

	assert.InDelta(t, 1.0, res.Factors[domain.Manganese], 1e-12)
	for _, e := range res.Entities {
		assert.InDelta(t, e.Baseline, e.Latest, 1e-9)
	}
}

func TestFactor_ZeroSum(t *testing.T) {
	assert.Equal(t, 1.0, Factor(0, Targets{}, domain.Gold))
	assert.Equal(t, 1500.0, Factor(0, DefaultTargets(), domain.Gold))
	assert.Equal(t, 2.0, Factor(500, Targets{domain.Gold: 1000}, domain.Gold))
}

func TestCalibrate_MixedCategoriesKeepOrder(t *testing.T) {
	in := []Entity{
		{ID: "a", Category: domain.Gold},
		{ID: "b", Category: domain.Gypsum},
		{ID: "c", Category: domain.Gold},
		{ID: "d", Category: domain.Category("Lithium")},
	}

	res := Calibrate(seeded(5), in, DefaultRanges(), DefaultTargets(), Options{Periods: 4})

	require.Len(t, res.Entities, 4)
	for i, e := range res.Entities {
		assert.Equal(t, in[i], e.Entity)
		assert.Len(t, e.Series, 4)
	}
	assert.InDelta(t, 1500, res.Entities[0].Latest+res.Entities[2].Latest, 1e-6)
	assert.InDelta(t, 10_000_000, res.Entities[1].Latest, 1e-3)
	assert.Zero(t, res.Entities[3].Baseline, "no range for unknown category")
}

func TestCalibrate_DeterministicForSeed(t *testing.T) {
	in := entities(50, domain.Chromite)

	a := Calibrate(seeded(77), in, DefaultRanges(), DefaultTargets(), Options{})
	b := Calibrate(seeded(77), in, DefaultRanges(), DefaultTargets(), Options{})
	c := Calibrate(seeded(78), in, DefaultRanges(), DefaultTargets(), Options{})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Entities[0].Series, c.Entities[0].Series)
}

func TestProjectSeries_NonNegativeAndDecaying(t *testing.T) {
	rng := seeded(9)
	opts := Options{Periods: 40}

	// Averaged over many draws the noise cancels and the drift shows through.
	const draws = 4000
	means := make([]float64, opts.Periods)
	for i := 0; i < draws; i++ {
		s := ProjectSeries(rng, 1000, opts)
		require.Len(t, s, opts.Periods)
		for k, v := range s {
			assert.GreaterOrEqual(t, v, 0.0)
			means[k] += v / draws
		}
	}

	for k, m := range means {
		expected := 1000 * (1 - DefaultDecayRate*float64(k))
		assert.InDelta(t, expected, m, 10, "period %d", k)
	}
}

func TestProjectSeries_FloorsAtZero(t *testing.T) {
	// With decay 0.5 every period past the second has a negative drift.
	s := ProjectSeries(seeded(10), 100, Options{Periods: 6, DecayRate: 0.5})

	for _, v := range s[3:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestParseTargetsOverride(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		check   func(t *testing.T, got Targets)
		wantErr bool
	}{
		{
			name: "empty keeps defaults",
			raw:  "  ",
			check: func(t *testing.T, got Targets) {
				assert.Equal(t, DefaultTargets(), got)
			},
		},
		{
			name: "tonnes and kg merge into defaults",
			raw:  `{"tonnes": {"Limestone": 20000000}, "kg": {"gold": 1200}}`,
			check: func(t *testing.T, got Targets) {
				assert.Equal(t, 20_000_000.0, got[domain.Limestone])
				assert.Equal(t, 1200.0, got[domain.Gold])
				assert.Equal(t, 10_000_000.0, got[domain.Gypsum])
			},
		},
		{
			name:    "malformed json",
			raw:     `{"tonnes": [1,2`,
			wantErr: true,
			check: func(t *testing.T, got Targets) {
				assert.Equal(t, DefaultTargets(), got)
			},
		},
		{
			name:    "negative value",
			raw:     `{"tonnes": {"Copper": -5}}`,
			wantErr: true,
			check: func(t *testing.T, got Targets) {
				assert.Equal(t, 200_000.0, got[domain.Copper])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetsOverride(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTargets))
			} else {
				require.NoError(t, err)
			}
			tt.check(t, got)
		})
	}
}

func TestTargets_Clone(t *testing.T) {
	orig := DefaultTargets()
	c := orig.Clone()
	c[domain.Gold] = 1

	assert.Equal(t, 1500.0, orig[domain.Gold])
}
