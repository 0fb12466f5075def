// Package indicators provides the numeric building blocks used by the
// platform filters: moving averages, dispersion measures and the technical
// oscillators used for breakthrough prediction.
package indicators

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Sum calculates the sum of a slice of float64.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates the arithmetic mean of a slice of float64.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// StdDev calculates the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(sumSquares(values) / float64(len(values)))
}

// SampleStdDev calculates the sample (n-1) standard deviation.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(sumSquares(values) / float64(len(values)-1))
}

func sumSquares(values []float64) float64 {
	m := Mean(values)
	var total float64
	for _, v := range values {
		diff := v - m
		total += diff * diff
	}
	return total
}

// CoefficientOfVariation returns std/mean, or NaN when the mean is zero.
func CoefficientOfVariation(values []float64) float64 {
	m := Mean(values)
	if m == 0 {
		return math.NaN()
	}
	return SampleStdDev(values) / m
}

// Returns computes simple period-over-period returns. Zero prices are skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// Slope returns the least-squares slope of values against their index.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / denom
}

// Highest returns the highest value in a slice.
func Highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[HighestIndex(values)]
}

// Lowest returns the lowest value in a slice.
func Lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[LowestIndex(values)]
}

// HighestIndex returns the index of the first highest value in a slice.
func HighestIndex(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	idx := 0
	for i, v := range values[1:] {
		if v > values[idx] {
			idx = i + 1
		}
	}
	return idx
}

// LowestIndex returns the index of the first lowest value in a slice.
func LowestIndex(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	idx := 0
	for i, v := range values[1:] {
		if v < values[idx] {
			idx = i + 1
		}
	}
	return idx
}

// Clamp01 limits x to [0, 1]; NaN maps to 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
