package visualization

import (
	"errors"
	"fmt"
	"strings"

	"tissuemap/pkg/colormap"
	"tissuemap/pkg/properties"
)

// Mode selects what the tissues are colored by
type Mode int

const (
	ModeTissue Mode = iota
	ModeDensity
	ModeHeatCapacity
	ModeThermalConductivity
	ModeHeatTransferRate
	ModeHeatGenerationRate
	ModeSpeedOfSound
	ModeNonlinearity
	ModeAttenuation
	ModeConductivity
	ModePermittivity
	ModeT1
	ModeT2
	ModeWaterContent
	ModeElemental
)

// ErrUnknownMode is returned for mode names and values outside the catalog
var ErrUnknownMode = errors.New("unknown visualization mode")

type modeInfo struct {
	name     string
	property properties.Property
	palette  colormap.Palette
	useLog   bool
}

var modes = [...]modeInfo{
	ModeTissue:              {name: "tissue"},
	ModeDensity:             {"density", properties.Density, colormap.Bone, false},
	ModeHeatCapacity:        {"heat-capacity", properties.HeatCapacity, colormap.Hot, false},
	ModeThermalConductivity: {"thermal-conductivity", properties.ThermalConductivity, colormap.Hot, true},
	ModeHeatTransferRate:    {"heat-transfer-rate", properties.HeatTransferRate, colormap.Hot, true},
	ModeHeatGenerationRate:  {"heat-generation-rate", properties.HeatGenerationRate, colormap.Hot, true},
	ModeSpeedOfSound:        {"speed-of-sound", properties.SpeedOfSound, colormap.BlueYellow, false},
	ModeNonlinearity:        {"nonlinearity", properties.Nonlinearity, colormap.PurpleGreen, false},
	ModeAttenuation:         {"attenuation", properties.Attenuation, colormap.Hot, true},
	ModeConductivity:        {"conductivity", properties.Conductivity, colormap.YlGnBu, true},
	ModePermittivity:        {"permittivity", properties.Permittivity, colormap.PurpleGreen, true},
	ModeT1:                  {"t1", properties.T1, colormap.Bone, false},
	ModeT2:                  {"t2", properties.T2, colormap.Bone, false},
	ModeWaterContent:        {"water-content", properties.WaterContent, colormap.YlGnBu, false},
	ModeElemental:           {"elemental", properties.Elemental, colormap.RedBlue, false},
}

// Modes lists every mode in catalog order
func Modes() []Mode {
	out := make([]Mode, len(modes))
	for i := range out {
		out[i] = Mode(i)
	}
	return out
}

func (m Mode) valid() bool {
	return m >= 0 && int(m) < len(modes)
}

// String returns the mode name
func (m Mode) String() string {
	if !m.valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modes[m].name
}

// ParseMode looks a mode up by name. Case is ignored and spaces or
// underscores may stand in for hyphens.
func ParseMode(name string) (Mode, error) {
	key := strings.NewReplacer(" ", "-", "_", "-").Replace(strings.ToLower(strings.TrimSpace(name)))
	for i, info := range modes {
		if info.name == key {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Property returns the scalar property shown by the mode. ok is false for
// the tissue identity mode.
func (m Mode) Property() (p properties.Property, ok bool) {
	if !m.valid() || m == ModeTissue {
		return 0, false
	}
	return modes[m].property, true
}

// FrequencyDependent reports whether the mode must be resolved again when
// the frequency changes
func (m Mode) FrequencyDependent() bool {
	p, ok := m.Property()
	return ok && p.FrequencyDependent()
}

// DefaultPalette returns the palette used unless overridden
func (m Mode) DefaultPalette() colormap.Palette {
	if !m.valid() {
		return colormap.Bone
	}
	return modes[m].palette
}

// DefaultLog reports whether the mode uses a log scale unless overridden
func (m Mode) DefaultLog() bool {
	return m.valid() && modes[m].useLog
}
