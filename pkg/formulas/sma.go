package formulas

import (
	"github.com/markcheno/go-talib"
)

// TrailingMean returns the simple moving average of the last length values.
// With fewer values than length the mean of everything is returned.
func TrailingMean(values []float64, length int) float64 {
	if len(values) == 0 {
		return 0
	}
	if length <= 0 || len(values) < length {
		return Mean(values)
	}

	sma := talib.Sma(values, length)
	if last := sma[len(sma)-1]; !isNaN(last) {
		return last
	}
	return Mean(values[len(values)-length:])
}
