// Package visualization resolves a display mode into per-tissue colors and
// renders colored slices of the label volume.
package visualization

import (
	"fmt"
	"maps"
	"slices"

	"github.com/lucasb-eyer/go-colorful"

	"tissuemap/internal/models"
	"tissuemap/pkg/colormap"
	"tissuemap/pkg/dispersion"
	"tissuemap/pkg/properties"
	"tissuemap/pkg/stats"
)

// Defaults for a fresh PropertyContext
const (
	DefaultFrequency     = 1e6
	DefaultFieldStrength = "3.0"
	DefaultElement       = "hydrogen"
)

// FieldStrengths are the MR field strengths the database tabulates
var FieldStrengths = []string{"1.5", "3.0"}

// Override replaces the default palette or scale of one mode. nil fields
// keep the default.
type Override struct {
	Palette *colormap.Palette
	UseLog  *bool
}

// PropertyContext carries everything needed to turn a mode into colors.
// It is a value: the With methods return a modified copy and never touch
// the receiver, so a context can be kept while another frequency is tried.
type PropertyContext struct {
	db     *properties.Database
	labels *properties.Labels

	counts    map[uint8]int
	overrides map[Mode]Override

	frequency     float64
	fieldStrength string
	element       string
	bounds        stats.Options
	compress      bool
}

// NewPropertyContext returns a context with default parameters and median
// compression enabled
func NewPropertyContext(db *properties.Database, labels *properties.Labels) PropertyContext {
	return PropertyContext{
		db:            db,
		labels:        labels,
		frequency:     DefaultFrequency,
		fieldStrength: DefaultFieldStrength,
		element:       DefaultElement,
		compress:      true,
	}
}

// Frequency returns the frequency in Hz used for dispersion-derived modes
func (c PropertyContext) Frequency() float64 { return c.frequency }

// FieldStrength returns the MR field strength used for T1 and T2
func (c PropertyContext) FieldStrength() string { return c.fieldStrength }

// Element returns the element shown in elemental mode
func (c PropertyContext) Element() string { return c.element }

// Labels returns the tissue label table
func (c PropertyContext) Labels() *properties.Labels { return c.labels }

// WithFrequency sets the frequency after checking it against the widest
// tabulated range. Attenuation applies its narrower range when resolved.
func (c PropertyContext) WithFrequency(f float64) (PropertyContext, error) {
	if err := dispersion.ValidateElectromagnetic(f); err != nil {
		return c, err
	}
	c.frequency = f
	return c, nil
}

// WithFieldStrength selects the 1.5 T or 3.0 T relaxation times
func (c PropertyContext) WithFieldStrength(fs string) (PropertyContext, error) {
	if !slices.Contains(FieldStrengths, fs) {
		return c, fmt.Errorf("field strength %q not in %v", fs, FieldStrengths)
	}
	c.fieldStrength = fs
	return c, nil
}

// WithElement selects the element shown in elemental mode
func (c PropertyContext) WithElement(element string) PropertyContext {
	c.element = element
	return c
}

// WithVoxelCounts supplies the per-tissue voxel counts used for weighting
func (c PropertyContext) WithVoxelCounts(counts map[uint8]int) PropertyContext {
	c.counts = maps.Clone(counts)
	return c
}

// WithBoundsOptions selects weighted and robust bounds
func (c PropertyContext) WithBoundsOptions(opts stats.Options) PropertyContext {
	c.bounds = opts
	return c
}

// WithCompression toggles median-centred color compression
func (c PropertyContext) WithCompression(on bool) PropertyContext {
	c.compress = on
	return c
}

// WithOverride replaces the palette or scale of a mode
func (c PropertyContext) WithOverride(m Mode, o Override) PropertyContext {
	c.overrides = maps.Clone(c.overrides)
	if c.overrides == nil {
		c.overrides = make(map[Mode]Override)
	}
	c.overrides[m] = o
	return c
}

func (c PropertyContext) params() properties.Params {
	return properties.Params{
		Frequency:     c.frequency,
		FieldStrength: c.fieldStrength,
		Element:       c.element,
	}
}

// Resolve computes the scalar map, bounds and color scale of a mode
func (c PropertyContext) Resolve(m Mode) (*View, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	view := &View{Mode: m, labels: c.labels}
	prop, ok := m.Property()
	if !ok {
		return view, nil
	}

	scalars, err := properties.Extract(c.db, c.labels, prop, c.params())
	if err != nil {
		return nil, err
	}

	opts := c.bounds
	if opts.Weighted && len(c.counts) == 0 {
		opts.Weighted = false
	}
	ids := slices.Sorted(maps.Keys(scalars))
	values := make([]float64, len(ids))
	weights := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = scalars[id]
		weights[i] = float64(c.counts[id])
	}

	scale := colormap.Scale{
		Bounds:   stats.ComputeBounds(values, weights, opts),
		Palette:  m.DefaultPalette(),
		UseLog:   m.DefaultLog(),
		Compress: c.compress,
	}
	if o, ok := c.overrides[m]; ok {
		if o.Palette != nil {
			scale.Palette = *o.Palette
		}
		if o.UseLog != nil {
			scale.UseLog = *o.UseLog
		}
	}

	view.Property = prop
	view.Scalars = scalars
	view.Scale = scale
	return view, nil
}

// View is a resolved mode: the colors of every tissue for one set of
// parameters
type View struct {
	Mode Mode

	// Property, Scalars and Scale are set for every mode but tissue
	Property properties.Property
	Scalars  properties.ScalarMap
	Scale    colormap.Scale

	labels *properties.Labels
}

// Bounds returns the display range of the property
func (v *View) Bounds() models.PropertyBounds {
	return v.Scale.Bounds
}

// HasData reports whether the tissue has a value in this view. Every
// labelled tissue has data in tissue mode.
func (v *View) HasData(id uint8) bool {
	if id == models.Background {
		return false
	}
	if v.Mode == ModeTissue {
		_, ok := v.labels.Get(id)
		return ok
	}
	_, ok := v.Scalars[id]
	return ok
}

// Color returns the display color of a tissue. Tissues without data get
// colormap.NoData.
func (v *View) Color(id uint8) colorful.Color {
	if id == models.Background {
		return colormap.NoData
	}
	if v.Mode == ModeTissue {
		t, ok := v.labels.Get(id)
		if !ok {
			return colormap.NoData
		}
		if t.Color != nil {
			return colorful.Color{R: t.Color[0], G: t.Color[1], B: t.Color[2]}
		}
		return colormap.Categorical(id)
	}
	return colormap.ColorFor(v.Scalars.Get(id), v.Scale)
}

// Alpha returns 0 for background, and for tissues without data when
// hideMissing is set; 255 otherwise
func (v *View) Alpha(id uint8, hideMissing bool) uint8 {
	if id == models.Background {
		return 0
	}
	if hideMissing && !v.HasData(id) {
		return 0
	}
	return 255
}

// ColorTable maps every labelled tissue to its color
func (v *View) ColorTable() map[uint8]colorful.Color {
	table := make(map[uint8]colorful.Color, v.labels.Len())
	for _, id := range v.labels.IDs() {
		table[id] = v.Color(id)
	}
	return table
}

// TableEntry is one row of an exported color table
type TableEntry struct {
	ID    uint8    `json:"id"`
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Color string   `json:"color"`
	Alpha uint8    `json:"alpha"`
}

// Entries returns the color table in id order for export
func (v *View) Entries(hideMissing bool) []TableEntry {
	out := make([]TableEntry, 0, v.labels.Len())
	for _, id := range v.labels.IDs() {
		t, _ := v.labels.Get(id)
		e := TableEntry{
			ID:    id,
			Name:  t.Name,
			Color: v.Color(id).Clamped().Hex(),
			Alpha: v.Alpha(id, hideMissing),
		}
		if v.Mode != ModeTissue {
			e.Value = v.Scalars.Get(id)
		}
		out = append(out, e)
	}
	return out
}
