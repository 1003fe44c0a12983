// Package dispersion computes frequency dependent tissue properties from
// tabulated, frequency independent coefficients: Cole-Cole dielectric
// dispersion and power-law acoustic attenuation.
package dispersion

import (
	"math"
	"math/cmplx"
)

const (
	// VacuumPermittivity is ε0 in F/m
	VacuumPermittivity = 8.854187817e-12

	// LFThreshold is the frequency in Hz below which a tabulated
	// low-frequency conductivity replaces the dispersion result
	LFThreshold = 1e6
)

// ColeColeTerm is one relaxation term of the Cole-Cole model
type ColeColeTerm struct {
	// Delta is the magnitude of the dispersion
	Delta float64 `json:"delta"`

	// Tau is the relaxation time constant in seconds
	Tau float64 `json:"tau"`

	// Alpha is the broadening exponent in [0,1)
	Alpha float64 `json:"alpha"`
}

// DielectricCoefficients parameterise the complex permittivity of one tissue
type DielectricCoefficients struct {
	// Ef is the high frequency permittivity limit
	Ef float64

	// Terms holds up to four relaxation terms
	Terms []ColeColeTerm

	// SigmaIonic is the static ionic conductivity in S/m
	SigmaIonic float64

	// LFConductivity is the measured low frequency conductivity, nil when
	// the tissue has none
	LFConductivity *float64
}

// Source names where a conductivity value came from
type Source string

const (
	SourceLF         Source = "LF"
	SourceDispersion Source = "dispersion"
)

// EMProperties are the electromagnetic properties of a tissue at one frequency
type EMProperties struct {
	// Permittivity is the relative permittivity ε'
	Permittivity float64

	// Conductivity is in S/m
	Conductivity float64

	// Source tells whether Conductivity came from the LF table or the model
	Source Source
}

// ComplexPermittivity evaluates the Cole-Cole model at frequency f in Hz.
// The real part is ε'; the imaginary part is the loss ε'' and is returned
// positive. Each term contributes Δ / (1 + (jωτ)^(1-α)) independently.
func ComplexPermittivity(c DielectricCoefficients, f float64) complex128 {
	omega := 2 * math.Pi * f
	re, im := c.Ef, 0.0

	for _, term := range c.Terms {
		if term.Delta == 0 {
			continue
		}
		exp := 1 - term.Alpha
		magnitude := math.Pow(omega*term.Tau, exp)
		phase := math.Pi / 2 * exp
		q := complex(term.Delta, 0) / (1 + cmplx.Rect(magnitude, phase))
		re += real(q)
		im -= imag(q)
	}

	im += c.SigmaIonic / (omega * VacuumPermittivity)
	return complex(re, im)
}

// Electromagnetic returns permittivity and conductivity at frequency f in Hz.
// Below 1 MHz the dispersion model is unreliable, so a positive tabulated
// low-frequency conductivity takes precedence there.
func Electromagnetic(c DielectricCoefficients, f float64) EMProperties {
	eps := ComplexPermittivity(c, f)
	omega := 2 * math.Pi * f

	props := EMProperties{
		Permittivity: real(eps),
		Conductivity: omega * VacuumPermittivity * imag(eps),
		Source:       SourceDispersion,
	}
	if f < LFThreshold && c.LFConductivity != nil && *c.LFConductivity > 0 {
		props.Conductivity = *c.LFConductivity
		props.Source = SourceLF
	}
	return props
}

// tauUnits are the scale factors of the four tabulated Cole-Cole time
// constants: picoseconds, nanoseconds, microseconds and milliseconds
var tauUnits = [4]float64{1e-12, 1e-9, 1e-6, 1e-3}

// ScaleTau converts the raw tabulated time constant of term (0-3) to seconds
func ScaleTau(raw float64, term int) float64 {
	if term < 0 || term >= len(tauUnits) {
		return math.NaN()
	}
	return raw * tauUnits[term]
}
