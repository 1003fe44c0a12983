package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid(1e-9))
	for _, v := range []float64{0, -3, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.False(t, Valid(v), "%v", v)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{4, 1, 3, 2}

	tests := []struct {
		p        float64
		expected float64
	}{
		{0, 1},
		{25, 1.75},
		{50, 2.5},
		{100, 4},
		{-5, 1},
		{250, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Percentile(vals, tt.p), 1e-12, "p=%v", tt.p)
	}

	// input order is left untouched
	assert.Equal(t, []float64{4, 1, 3, 2}, vals)
}

func TestPercentileBoundaries(t *testing.T) {
	vals := []float64{0.3, 12, 7.5, 1e3, 0.02}
	assert.Equal(t, 0.02, Percentile(vals, 0))
	assert.Equal(t, 1e3, Percentile(vals, 100))

	for _, p := range []float64{0, 37, 100} {
		assert.Equal(t, 0.0, Percentile(nil, p))
		assert.Equal(t, 0.0, Percentile([]float64{0, -1, math.NaN()}, p))
	}
}

func TestPercentileDropsMissing(t *testing.T) {
	vals := []float64{0, -1, math.NaN(), math.Inf(1), 3, 1}
	assert.Equal(t, 1.0, Percentile(vals, 0))
	assert.Equal(t, 3.0, Percentile(vals, 100))
	assert.Equal(t, 2.0, Median(vals))
}

func TestWeightedPercentile(t *testing.T) {
	vals := []float64{3, 1, 2}
	wts := []float64{8, 1, 1}

	tests := []struct {
		p        float64
		expected float64
	}{
		{0, 1},
		{5, 1},
		{15, 2},
		{18, 2},
		{50, 3},
		{100, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, WeightedPercentile(vals, wts, tt.p), "p=%v", tt.p)
	}

	assert.Equal(t, 0.0, WeightedPercentile(nil, nil, 50))
	// a zero-weight tissue does not count
	assert.Equal(t, 3.0, WeightedPercentile([]float64{1, 3}, []float64{0, 2}, 0))
}

func TestWeightedPercentileFractionalWeights(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	wts := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	assert.Equal(t, 10.0, WeightedPercentile(vals, wts, 100))
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 1.5, WeightedMean([]float64{1, 3}, []float64{3, 1}), 1e-12)
	assert.InDelta(t, 3.0, WeightedMean([]float64{1, 3, -2}, []float64{0, 1, 5}), 1e-12)
	assert.Equal(t, 0.0, WeightedMean(nil, nil))
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 3, 0}), 1e-12)
}

func TestIQRBounds(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
	lo, hi := IQRBounds(vals)
	assert.Equal(t, 1.0, lo)
	assert.InDelta(t, 16.75, hi, 1e-12)

	lo, hi = IQRBounds([]float64{5, 5, 5})
	assert.Equal(t, 5.0, lo)
	assert.Equal(t, 5.0, hi)

	lo, hi = IQRBounds(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestComputeBounds(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100, 0}

	raw := ComputeBounds(vals, nil, Options{})
	assert.Equal(t, 1.0, raw.Min)
	assert.Equal(t, 100.0, raw.Max)
	assert.Equal(t, 5.5, raw.Median)
	assert.InDelta(t, 14.5, raw.Mean, 1e-12)
	assert.Equal(t, 10, raw.Count)

	robust := ComputeBounds(vals, nil, Options{Robust: true})
	assert.Equal(t, 1.0, robust.Min)
	assert.InDelta(t, 16.75, robust.Max, 1e-12)
	assert.Equal(t, raw.Median, robust.Median)

	assert.True(t, ComputeBounds(nil, nil, Options{}).Empty())
	assert.True(t, ComputeBounds([]float64{1}, []float64{0}, Options{Weighted: true}).Empty())
}

func TestComputeBoundsWeighted(t *testing.T) {
	vals := []float64{1, 2, 3, 0, 10}
	wts := []float64{1, 1, 8, 5, 0}

	b := ComputeBounds(vals, wts, Options{Weighted: true})
	assert.Equal(t, 1.0, b.Min)
	assert.Equal(t, 3.0, b.Max)
	assert.Equal(t, 3.0, b.Median)
	assert.InDelta(t, 2.7, b.Mean, 1e-12)
	assert.Equal(t, 3, b.Count)

	robust := ComputeBounds(vals, wts, Options{Weighted: true, Robust: true})
	// q1 = 3, q3 = 3: the range collapses onto the dominant tissue
	assert.Equal(t, 3.0, robust.Min)
	assert.Equal(t, 3.0, robust.Max)
}
