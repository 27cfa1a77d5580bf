// Package formulas provides the small numeric helpers shared by the forecast
// engine and the dataset generator.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Round rounds v to the given number of decimal places, halves away from zero
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsConstant reports whether every value equals the first within tol
func IsConstant(data []float64, tol float64) bool {
	for _, v := range data[min(1, len(data)):] {
		if math.Abs(v-data[0]) > tol {
			return false
		}
	}
	return true
}

func isNaN(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
