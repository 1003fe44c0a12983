package colormap

import (
	"image/color"
	"math"

	"cogentcore.org/core/colors"
	"github.com/lucasb-eyer/go-colorful"

	"tissuemap/internal/models"
	"tissuemap/pkg/stats"
)

// SigmoidGain is the steepness of the median-centred compression
const SigmoidGain = 25.0

// NoData is the neutral gray returned for tissues without a measurement
var NoData = colorful.Color{R: 0.5, G: 0.5, B: 0.5}

// position places value on [min,max], logarithmically when useLog is set
// and every operand is positive. A degenerate range maps to the middle.
func position(value, lo, hi float64, useLog bool) float64 {
	if useLog && value > 0 && lo > 0 && hi > 0 {
		den := math.Log10(hi) - math.Log10(lo)
		if den == 0 {
			return 0.5
		}
		return (math.Log10(value) - math.Log10(lo)) / den
	}
	if hi == lo {
		return 0.5
	}
	return (value - lo) / (hi - lo)
}

// Normalize maps value to [0,1] within [lo,hi]. When median is positive the
// result is pushed through tanh centred on the median's own position, so
// the bulk of tissues spreads across the middle of the palette instead of
// being squeezed by a few extreme values. Pass 0 to disable compression.
func Normalize(value, lo, hi float64, useLog bool, median float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	t := position(value, lo, hi, useLog)
	if median > 0 {
		tm := position(median, lo, hi, useLog)
		t = 0.5 + math.Tanh((t-tm)*SigmoidGain)*0.5
	}
	return clamp01(t)
}

// Scale binds a palette to the bounds of one property
type Scale struct {
	Bounds  models.PropertyBounds
	Palette Palette
	UseLog  bool

	// Compress centres the palette on Bounds.Median
	Compress bool
}

// Normalize maps v onto [0,1] using the scale settings
func (s Scale) Normalize(v float64) float64 {
	median := 0.0
	if s.Compress {
		median = s.Bounds.Median
	}
	return Normalize(v, s.Bounds.Min, s.Bounds.Max, s.UseLog, median)
}

// Color returns the palette color for v
func (s Scale) Color(v float64) colorful.Color {
	return s.Palette.At(s.Normalize(v))
}

// ColorFor returns the color of a possibly missing measurement. nil, zero,
// negative and non-finite values are missing and get NoData.
func ColorFor(value *float64, s Scale) colorful.Color {
	if value == nil || !stats.Valid(*value) {
		return NoData
	}
	return s.Color(*value)
}

// IsNoData reports whether c is the missing-data sentinel
func IsNoData(c colorful.Color) bool {
	return c == NoData
}

// ToRGBA converts a palette color to an 8-bit color with the given alpha
func ToRGBA(c colorful.Color, alpha uint8) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}
}

// Categorical returns a distinct identity color for a tissue id, used when
// the label table has no color for a tissue
func Categorical(id uint8) colorful.Color {
	c, _ := colorful.MakeColor(colors.Spaced(int(id)))
	return c
}
