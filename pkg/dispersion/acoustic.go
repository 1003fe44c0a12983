package dispersion

import (
	"errors"
	"fmt"
	"math"
)

// AttenuationCoefficients describe power-law acoustic attenuation
type AttenuationCoefficients struct {
	// Alpha0 is the attenuation at 1 MHz in Np/m/MHz
	Alpha0 float64 `json:"alpha0"`

	// B is the frequency exponent
	B float64 `json:"b"`
}

// AcousticAttenuation returns the attenuation in Np/m at frequency f in Hz
func AcousticAttenuation(a AttenuationCoefficients, f float64) float64 {
	return a.Alpha0 * math.Pow(f/1e6, a.B)
}

// ErrFrequencyOutOfRange is returned when a frequency lies outside the range
// the models are tabulated for
var ErrFrequencyOutOfRange = errors.New("frequency out of range")

// Accepted frequency ranges in Hz
const (
	MinFrequency      = 10.0
	MaxAcousticFreq   = 1e9
	MaxElectromagFreq = 100e9
)

// ValidateAcoustic checks f against the 10 Hz - 1 GHz acoustic range
func ValidateAcoustic(f float64) error {
	return validate(f, MinFrequency, MaxAcousticFreq)
}

// ValidateElectromagnetic checks f against the 10 Hz - 100 GHz dielectric range
func ValidateElectromagnetic(f float64) error {
	return validate(f, MinFrequency, MaxElectromagFreq)
}

func validate(f, lo, hi float64) error {
	if math.IsNaN(f) || f < lo || f > hi {
		return fmt.Errorf("%w: %g Hz not in [%g, %g]", ErrFrequencyOutOfRange, f, lo, hi)
	}
	return nil
}
