package properties

import (
	"errors"
	"fmt"
	"strings"

	"tissuemap/internal/models"
	"tissuemap/pkg/dispersion"
	"tissuemap/pkg/stats"
)

// Property is a scalar that can be read or derived for every tissue
type Property int

const (
	Density Property = iota
	HeatCapacity
	ThermalConductivity
	HeatTransferRate
	HeatGenerationRate
	SpeedOfSound
	Nonlinearity
	Attenuation
	Conductivity
	Permittivity
	T1
	T2
	WaterContent
	Elemental
)

var propertyInfo = [...]struct {
	name string
	unit string
}{
	Density:             {"density", "kg/m³"},
	HeatCapacity:        {"heat-capacity", "J/kg/°C"},
	ThermalConductivity: {"thermal-conductivity", "W/m/°C"},
	HeatTransferRate:    {"heat-transfer-rate", "mL/min/kg"},
	HeatGenerationRate:  {"heat-generation-rate", "W/kg"},
	SpeedOfSound:        {"speed-of-sound", "m/s"},
	Nonlinearity:        {"nonlinearity", "B/A"},
	Attenuation:         {"attenuation", "Np/m"},
	Conductivity:        {"conductivity", "S/m"},
	Permittivity:        {"permittivity", ""},
	T1:                  {"t1", "ms"},
	T2:                  {"t2", "ms"},
	WaterContent:        {"water-content", "%"},
	Elemental:           {"elemental", "mass fraction"},
}

// String returns the property name
func (p Property) String() string {
	if p < 0 || int(p) >= len(propertyInfo) {
		return fmt.Sprintf("Property(%d)", int(p))
	}
	return propertyInfo[p].name
}

// Unit returns the physical unit of the property
func (p Property) Unit() string {
	if p < 0 || int(p) >= len(propertyInfo) {
		return ""
	}
	return propertyInfo[p].unit
}

// FrequencyDependent reports whether the property is derived from a
// dispersion model and must be recomputed when the frequency changes
func (p Property) FrequencyDependent() bool {
	return p == Attenuation || p == Conductivity || p == Permittivity
}

// Params carries the inputs some properties depend on
type Params struct {
	// Frequency in Hz, for attenuation, conductivity and permittivity
	Frequency float64

	// FieldStrength in tesla as written in the database keys, "1.5" or "3.0"
	FieldStrength string

	// Element name for elemental composition, e.g. "hydrogen"
	Element string
}

// ErrMissingParam is returned when a property needs a parameter that was
// not supplied
var ErrMissingParam = errors.New("missing parameter")

func (p Params) check(prop Property) error {
	switch prop {
	case Attenuation:
		return dispersion.ValidateAcoustic(p.Frequency)
	case Conductivity, Permittivity:
		return dispersion.ValidateElectromagnetic(p.Frequency)
	case T1, T2:
		if p.FieldStrength == "" {
			return fmt.Errorf("%w: field strength for %s", ErrMissingParam, prop)
		}
	case Elemental:
		if p.Element == "" {
			return fmt.Errorf("%w: element for %s", ErrMissingParam, prop)
		}
	}
	return nil
}

// relaxationKey maps a field strength to the database key, "3.0" -> "t1_30T"
func relaxationKey(prefix, fieldStrength string) string {
	fs := strings.TrimSuffix(strings.TrimSpace(fieldStrength), "T")
	return prefix + "_" + strings.ReplaceAll(fs, ".", "") + "T"
}

// Value returns one property of one tissue. ok is false when the tissue has
// no measurement; the value itself is not checked for validity.
func Value(e *Entry, prop Property, params Params) (v float64, ok bool) {
	pr := e.Properties
	pick := func(p *float64) (float64, bool) {
		if p == nil {
			return 0, false
		}
		return *p, true
	}

	switch prop {
	case Density, HeatCapacity, ThermalConductivity, HeatTransferRate, HeatGenerationRate:
		th := pr.Thermal
		if th == nil {
			return 0, false
		}
		return pick([...]*float64{
			Density:             th.Density,
			HeatCapacity:        th.HeatCapacity,
			ThermalConductivity: th.ThermalConductivity,
			HeatTransferRate:    th.HeatTransferRate,
			HeatGenerationRate:  th.HeatGenerationRate,
		}[prop])
	case SpeedOfSound, Nonlinearity:
		if pr.Acoustic == nil {
			return 0, false
		}
		if prop == SpeedOfSound {
			return pick(pr.Acoustic.SpeedOfSound)
		}
		return pick(pr.Acoustic.Nonlinearity)
	case Attenuation:
		a, ok := e.Attenuation()
		if !ok {
			return 0, false
		}
		return dispersion.AcousticAttenuation(a, params.Frequency), true
	case Conductivity, Permittivity:
		c, ok := e.Dielectric()
		if !ok {
			return 0, false
		}
		em := dispersion.Electromagnetic(c, params.Frequency)
		if prop == Conductivity {
			return em.Conductivity, true
		}
		return em.Permittivity, true
	case T1:
		return pick(pr.Relaxation[relaxationKey("t1", params.FieldStrength)])
	case T2:
		return pick(pr.Relaxation[relaxationKey("t2", params.FieldStrength)])
	case WaterContent:
		return pick(pr.WaterContent)
	case Elemental:
		return pick(pr.Elemental[strings.ToLower(params.Element)])
	}
	return 0, false
}

// ScalarMap holds one property value per tissue id. Only tissues with a
// valid measurement are present.
type ScalarMap map[uint8]float64

// Get returns the value of a tissue as an optional
func (m ScalarMap) Get(id uint8) *float64 {
	v, ok := m[id]
	if !ok {
		return nil
	}
	return &v
}

// Extract evaluates a property for every labelled tissue. Tissues missing
// from the database, or whose value is zero, negative or not finite, are
// left out of the map.
func Extract(db *Database, labels *Labels, prop Property, params Params) (ScalarMap, error) {
	if err := params.check(prop); err != nil {
		return nil, fmt.Errorf("cannot extract %s: %w", prop, err)
	}

	out := make(ScalarMap)
	for _, id := range labels.IDs() {
		if id == models.Background {
			continue
		}
		t, _ := labels.Get(id)
		e, ok := db.Lookup(t.Name)
		if !ok {
			continue
		}
		if v, ok := Value(e, prop, params); ok && stats.Valid(v) {
			out[id] = v
		}
	}
	return out, nil
}
