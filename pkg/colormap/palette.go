// Package colormap turns per-tissue scalar values into display colors:
// a fixed catalog of piecewise-linear palettes and the normalization that
// maps a value onto [0,1] given the property bounds.
package colormap

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette names one of the fixed color ramps
type Palette int

const (
	Bone Palette = iota
	Hot
	Seismic
	RedBlue
	BlueYellow
	YlGnBu
	PurpleGreen
)

var paletteNames = [...]string{
	Bone:        "bone",
	Hot:         "hot",
	Seismic:     "seismic",
	RedBlue:     "redblue",
	BlueYellow:  "blueyellow",
	YlGnBu:      "ylgnbu",
	PurpleGreen: "purplegreen",
}

// control points, evenly spaced from t=0 to t=1
var paletteHex = [...][]string{
	Bone:       {"#000000", "#545474", "#a7c7c7", "#ffffff"},
	Hot:        {"#000000", "#ff0000", "#ffff00", "#ffffff"},
	Seismic:    {"#00004c", "#0000ff", "#ffffff", "#ff0000", "#800000"},
	RedBlue:    {"#ca0020", "#f4a582", "#f7f7f7", "#92c5de", "#0571b0"},
	BlueYellow: {"#0033cc", "#ffdd00"},
	YlGnBu: {
		"#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4",
		"#1d91c0", "#225ea8", "#253494", "#081d58",
	},
	PurpleGreen: {
		"#440154", "#482878", "#3e4989", "#31688e",
		"#26828e", "#1f9e89", "#35b779", "#6ece58",
	},
}

var paletteStops = func() [][]colorful.Color {
	stops := make([][]colorful.Color, len(paletteHex))
	for p, hexes := range paletteHex {
		for _, h := range hexes {
			c, err := colorful.Hex(h)
			if err != nil {
				panic(fmt.Sprintf("colormap: bad control point %s: %v", h, err))
			}
			stops[p] = append(stops[p], c)
		}
	}
	return stops
}()

// Palettes lists every palette in catalog order
func Palettes() []Palette {
	out := make([]Palette, len(paletteNames))
	for i := range out {
		out[i] = Palette(i)
	}
	return out
}

func (p Palette) valid() bool {
	return p >= 0 && int(p) < len(paletteNames)
}

// String returns the palette name
func (p Palette) String() string {
	if !p.valid() {
		return fmt.Sprintf("Palette(%d)", int(p))
	}
	return paletteNames[p]
}

// ParsePalette looks a palette up by name, ignoring case and separators
func ParsePalette(name string) (Palette, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(name))
	for i, n := range paletteNames {
		if n == key {
			return Palette(i), nil
		}
	}
	return 0, fmt.Errorf("unknown palette %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (p Palette) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("invalid palette %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Palette) UnmarshalText(text []byte) error {
	parsed, err := ParsePalette(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Stops returns a copy of the palette control points
func (p Palette) Stops() []colorful.Color {
	if !p.valid() {
		return nil
	}
	return append([]colorful.Color(nil), paletteStops[p]...)
}

// At interpolates the palette linearly in RGB at t. t is clamped to [0,1];
// NaN maps to the first control point.
func (p Palette) At(t float64) colorful.Color {
	if !p.valid() {
		return NoData
	}
	stops := paletteStops[p]
	t = clamp01(t)

	pos := t * float64(len(stops)-1)
	i := int(math.Floor(pos))
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	return stops[i].BlendRgb(stops[i+1], pos-float64(i))
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
