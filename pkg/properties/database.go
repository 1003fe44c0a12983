// Package properties reads the tissue property database and the label table
// of a head model, and extracts one scalar property per tissue from them.
//
// Every numeric field of the database is optional: JSON null decodes to a
// nil pointer and means the tissue was never measured for that property.
package properties

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"tissuemap/pkg/dispersion"
)

// Thermal properties of a tissue
type Thermal struct {
	Density             *float64 `json:"density"`
	HeatCapacity        *float64 `json:"heatCapacity"`
	ThermalConductivity *float64 `json:"thermalConductivity"`
	HeatTransferRate    *float64 `json:"heatTransferRate"`
	HeatGenerationRate  *float64 `json:"heatGenerationRate"`
}

// AttenuationCoeffs holds the power-law acoustic attenuation coefficients
type AttenuationCoeffs struct {
	Alpha0 *float64 `json:"alpha0"`
	B      *float64 `json:"b"`
}

// Acoustic properties of a tissue
type Acoustic struct {
	SpeedOfSound *float64           `json:"speedOfSound"`
	Nonlinearity *float64           `json:"nonlinearity"`
	Attenuation  *AttenuationCoeffs `json:"attenuation"`
}

// ColeColeTerm is one relaxation term with tau already in seconds
type ColeColeTerm struct {
	Delta *float64 `json:"delta"`
	Tau   *float64 `json:"tau"`
	Alpha *float64 `json:"alpha"`
}

// Units of the Cole-Cole time constants
const (
	// TauSeconds is the default: every tau is in seconds
	TauSeconds = "s"

	// TauTabulated keeps the spreadsheet units, ps, ns, µs and ms for
	// terms 1 to 4
	TauTabulated = "tabulated"
)

// ColeCole is the tabulated dielectric dispersion of a tissue
type ColeCole struct {
	Ef         *float64       `json:"ef"`
	Terms      []ColeColeTerm `json:"terms"`
	SigmaIonic *float64       `json:"sigmaIonic"`
	TauUnits   string         `json:"tauUnits,omitempty"`
}

func (cc *ColeCole) check() error {
	switch cc.TauUnits {
	case "", TauSeconds:
	case TauTabulated:
		if len(cc.Terms) > 4 {
			return fmt.Errorf("tabulated tau units cover 4 terms, got %d", len(cc.Terms))
		}
	default:
		return fmt.Errorf("unknown tau units %q", cc.TauUnits)
	}
	return nil
}

// Dielectric properties of a tissue
type Dielectric struct {
	ColeCole       *ColeCole `json:"coleCole"`
	LFConductivity *float64  `json:"lfConductivity"`
}

// Properties groups everything measured for one tissue
type Properties struct {
	Thermal    *Thermal    `json:"thermal"`
	Acoustic   *Acoustic   `json:"acoustic"`
	Dielectric *Dielectric `json:"dielectric"`

	// Relaxation is keyed t1_15T, t2_15T, t1_30T, t2_30T (ms)
	Relaxation map[string]*float64 `json:"relaxation"`

	WaterContent *float64 `json:"waterContent"`

	// Elemental maps a lower-case element name to its mass fraction
	Elemental map[string]*float64 `json:"elemental"`
}

// Entry is one tissue of the database
type Entry struct {
	Name             string     `json:"name"`
	AlternativeNames []string   `json:"alternativeNames"`
	Properties       Properties `json:"properties"`
}

// Database is a read-only, case-insensitive view of the tissue table
type Database struct {
	index   map[string]*Entry
	entries []*Entry
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load decodes a property database. The file is keyed by tissue name and
// may repeat an entry under each of its alternative names; repeated
// entries are folded into one.
func Load(r io.Reader) (*Database, error) {
	var raw map[string]*Entry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding property database: %w", err)
	}

	// Iterate in key order so that conflicts resolve the same way every run
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	db := &Database{index: make(map[string]*Entry, len(raw))}
	seen := make(map[string]*Entry)
	for _, k := range keys {
		e := raw[k]
		if e == nil {
			continue
		}
		if e.Name == "" {
			e.Name = k
		}
		if _, ok := seen[key(e.Name)]; ok {
			// alias copy of an entry already loaded
			continue
		}
		if d := e.Properties.Dielectric; d != nil && d.ColeCole != nil {
			if err := d.ColeCole.check(); err != nil {
				return nil, fmt.Errorf("tissue %s: %w", e.Name, err)
			}
		}
		seen[key(e.Name)] = e
		db.entries = append(db.entries, e)
	}

	// primary names win over aliases and file keys
	for _, e := range db.entries {
		db.index[key(e.Name)] = e
	}
	for _, e := range db.entries {
		for _, alt := range e.AlternativeNames {
			db.add(alt, e)
		}
	}
	for _, k := range keys {
		if raw[k] != nil {
			db.add(k, seen[key(raw[k].Name)])
		}
	}

	sort.Slice(db.entries, func(i, j int) bool {
		return db.entries[i].Name < db.entries[j].Name
	})
	return db, nil
}

func (db *Database) add(name string, e *Entry) {
	k := key(name)
	if k == "" {
		return
	}
	if _, taken := db.index[k]; !taken {
		db.index[k] = e
	}
}

// LoadFile reads a property database from disk
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening property database: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Lookup finds a tissue by its primary or any alternative name, ignoring case
func (db *Database) Lookup(name string) (*Entry, bool) {
	e, ok := db.index[key(name)]
	return e, ok
}

// Len returns the number of distinct tissues
func (db *Database) Len() int {
	return len(db.entries)
}

// Names returns the primary tissue names in sorted order
func (db *Database) Names() []string {
	names := make([]string, len(db.entries))
	for i, e := range db.entries {
		names[i] = e.Name
	}
	return names
}

func deref(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// Dielectric returns the Cole-Cole coefficients of the tissue, with tau in
// seconds. ok is false when the tissue has no dispersion data. Terms without
// a magnitude are skipped; a missing tau or alpha counts as zero.
func (e *Entry) Dielectric() (c dispersion.DielectricCoefficients, ok bool) {
	d := e.Properties.Dielectric
	if d == nil || d.ColeCole == nil || d.ColeCole.Ef == nil {
		return c, false
	}
	cc := d.ColeCole
	c.Ef = *cc.Ef
	c.SigmaIonic = deref(cc.SigmaIonic, 0)
	c.LFConductivity = d.LFConductivity
	for i, t := range cc.Terms {
		if t.Delta == nil {
			continue
		}
		tau := deref(t.Tau, 0)
		if cc.TauUnits == TauTabulated {
			tau = dispersion.ScaleTau(tau, i)
		}
		c.Terms = append(c.Terms, dispersion.ColeColeTerm{
			Delta: *t.Delta,
			Tau:   tau,
			Alpha: deref(t.Alpha, 0),
		})
	}
	return c, true
}

// Attenuation returns the acoustic attenuation coefficients. A missing
// exponent defaults to 1 (linear in frequency).
func (e *Entry) Attenuation() (a dispersion.AttenuationCoefficients, ok bool) {
	ac := e.Properties.Acoustic
	if ac == nil || ac.Attenuation == nil || ac.Attenuation.Alpha0 == nil {
		return a, false
	}
	a.Alpha0 = *ac.Attenuation.Alpha0
	a.B = deref(ac.Attenuation.B, 1)
	return a, true
}
