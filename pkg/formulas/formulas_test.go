package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)

	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.InDelta(t, math.Sqrt(5.0/3.0), StdDev([]float64{1, 2, 3, 4}), 1e-12)
}

func TestTrailingMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		length   int
		expected float64
	}{
		{"last three", []float64{10, 20, 30, 40, 50}, 3, 40},
		{"exactly three", []float64{3, 6, 9}, 3, 6},
		{"shorter than window", []float64{4, 8}, 3, 6},
		{"empty", nil, 3, 0},
		{"non-positive window", []float64{1, 2, 3}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TrailingMean(tt.values, tt.length), 1e-9)
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2345, 2))
	assert.Equal(t, 1.2, Round(1.15000001, 1))
	assert.Equal(t, -2.5, Round(-2.45, 1))
	assert.Equal(t, 100.0, Round(99.96, 1))
}

func TestClampAndIsConstant(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 100))
	assert.Equal(t, 100.0, Clamp(130, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))

	assert.True(t, IsConstant([]float64{7, 7, 7}, 0))
	assert.True(t, IsConstant(nil, 0))
	assert.False(t, IsConstant([]float64{7, 7, 7.1}, 1e-9))
}
