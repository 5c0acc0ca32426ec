// Package formulas holds the cross-sectional statistics used to form portfolios.
package formulas

import (
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when a statistic is requested over no observations
var ErrEmptyInput = errors.New("formulas: empty input")

// ErrZeroWeight is returned when weights sum to zero
var ErrZeroWeight = errors.New("formulas: weights sum to zero")

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

// TStat returns mean / (sd / sqrt(n)); zero when the series is too short or flat
func TStat(data []float64) float64 {
	sd := StdDev(data)
	if sd == 0 {
		return 0
	}
	return Mean(data) / (sd / math.Sqrt(float64(len(data))))
}

// Median returns the cross-sectional median
func Median(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyInput
	}
	return stats.Median(data)
}

// Quantile returns the p-th quantile (0 <= p <= 1) using linear interpolation
// between closest ranks, h = (n-1)p (Hyndman-Fan type 7).
//
// gonum's stat.Quantile only offers the Empirical and LinInterp CDF estimators,
// neither of which reproduces this definition, so it is computed directly.
func Quantile(p float64, data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyInput
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, errors.New("formulas: quantile out of range")
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	if lo == hi {
		return sorted[int(lo)], nil
	}
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)]), nil
}

// WeightedMean returns Σ(x·w) / Σw
func WeightedMean(values, weights []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	if len(values) != len(weights) {
		return 0, errors.New("formulas: values and weights length mismatch")
	}
	total := floats.Sum(weights)
	if total == 0 {
		return 0, ErrZeroWeight
	}
	return floats.Dot(values, weights) / total, nil
}
