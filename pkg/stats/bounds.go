package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tissuemap/internal/models"
)

// Options selects how ComputeBounds summarises a property
type Options struct {
	// Weighted uses the supplied weights (voxel counts) for the median,
	// mean and quartiles. Tissues without a positive weight are ignored.
	Weighted bool

	// Robust replaces the raw min/max with IQRBounds
	Robust bool
}

// ComputeBounds summarises one property across all tissues. weights is
// parallel to values and only consulted when opts.Weighted is set.
func ComputeBounds(values, weights []float64, opts Options) models.PropertyBounds {
	if opts.Weighted {
		return weightedBounds(values, weights, opts.Robust)
	}

	vals := Filter(values)
	if len(vals) == 0 {
		return models.PropertyBounds{}
	}
	sort.Float64s(vals)

	b := models.PropertyBounds{
		Min:    vals[0],
		Max:    vals[len(vals)-1],
		Median: percentileSorted(vals, 50),
		Mean:   stat.Mean(vals, nil),
		Count:  len(vals),
	}
	if opts.Robust {
		b.Min, b.Max = iqrSorted(vals)
	}
	return b
}

func weightedBounds(values, weights []float64, robust bool) models.PropertyBounds {
	vals, wts := filterWeighted(values, weights)
	if len(vals) == 0 {
		return models.PropertyBounds{}
	}
	stat.SortWeighted(vals, wts)

	b := models.PropertyBounds{
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
		Median: weightedPercentileSorted(vals, wts, 50),
		Mean:   stat.Mean(vals, wts),
		Count:  len(vals),
	}
	if robust {
		q1 := weightedPercentileSorted(vals, wts, 25)
		q3 := weightedPercentileSorted(vals, wts, 75)
		iqr := q3 - q1
		b.Min = max(q1-IQRFactor*iqr, b.Min)
		b.Max = min(q3+IQRFactor*iqr, b.Max)
	}
	return b
}
