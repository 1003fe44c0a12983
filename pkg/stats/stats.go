// Package stats computes robust display statistics over per-tissue scalar
// values. Values that are zero, negative or not finite mean "not measured"
// and are dropped before any computation.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IQRFactor is the number of interquartile ranges tolerated beyond the
// quartiles by IQRBounds
const IQRFactor = 2.0

// Valid reports whether v is a usable measurement
func Valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Filter returns the valid values of xs in a new slice
func Filter(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if Valid(x) {
			out = append(out, x)
		}
	}
	return out
}

// filterWeighted keeps the pairs whose value and weight are both valid
func filterWeighted(xs, ws []float64) ([]float64, []float64) {
	n := min(len(xs), len(ws))
	vals := make([]float64, 0, n)
	wts := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if Valid(xs[i]) && Valid(ws[i]) {
			vals = append(vals, xs[i])
			wts = append(wts, ws[i])
		}
	}
	return vals, wts
}

// percentileSorted interpolates linearly between the order statistics
// around the fractional index (p/100)(n-1)
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	p = math.Max(0, math.Min(100, p))
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Percentile returns the p-th percentile (0-100) of the valid values.
// An empty input yields 0.
func Percentile(xs []float64, p float64) float64 {
	vals := Filter(xs)
	sort.Float64s(vals)
	return percentileSorted(vals, p)
}

// Median returns the 50th percentile of the valid values
func Median(xs []float64) float64 {
	return Percentile(xs, 50)
}

// WeightedPercentile returns the smallest value whose cumulative weight
// reaches p/100 of the total weight. With voxel counts as weights, large
// tissues dominate the result rather than the number of tissues.
func WeightedPercentile(xs, ws []float64, p float64) float64 {
	vals, wts := filterWeighted(xs, ws)
	if len(vals) == 0 {
		return 0
	}
	stat.SortWeighted(vals, wts)
	return weightedPercentileSorted(vals, wts, p)
}

func weightedPercentileSorted(vals, wts []float64, p float64) float64 {
	p = math.Max(0, math.Min(100, p))
	target := p / 100 * floats.Sum(wts)
	cum := 0.0
	for i, w := range wts {
		cum += w
		if cum >= target {
			return vals[i]
		}
	}
	// rounding in the running sum can leave it a hair below the total
	return vals[len(vals)-1]
}

// WeightedMean returns the weighted arithmetic mean of the valid pairs.
// An empty input yields 0.
func WeightedMean(xs, ws []float64) float64 {
	vals, wts := filterWeighted(xs, ws)
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, wts)
}

// Mean returns the arithmetic mean of the valid values
func Mean(xs []float64) float64 {
	vals := Filter(xs)
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// IQRBounds returns an outlier-robust display range: the quartiles widened
// by IQRFactor interquartile ranges, never beyond the data itself
func IQRBounds(xs []float64) (lo, hi float64) {
	vals := Filter(xs)
	if len(vals) == 0 {
		return 0, 0
	}
	sort.Float64s(vals)
	return iqrSorted(vals)
}

func iqrSorted(sorted []float64) (lo, hi float64) {
	q1 := percentileSorted(sorted, 25)
	q3 := percentileSorted(sorted, 75)
	iqr := q3 - q1
	lo = math.Max(q1-IQRFactor*iqr, sorted[0])
	hi = math.Min(q3+IQRFactor*iqr, sorted[len(sorted)-1])
	return lo, hi
}
