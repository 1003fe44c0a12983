package properties

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"tissuemap/internal/models"
)

// Labels is the tissue label table of a head model: the id stored in the
// mesh and the volume, the tissue name and an optional display color
type Labels struct {
	byID map[uint8]models.Tissue
	ids  []uint8
}

// NewLabels validates a label list. Id 0 is reserved for background and
// ids must be unique.
func NewLabels(tissues []models.Tissue) (*Labels, error) {
	l := &Labels{byID: make(map[uint8]models.Tissue, len(tissues))}
	for _, t := range tissues {
		if t.ID == models.Background {
			return nil, fmt.Errorf("label %q uses reserved background id %d", t.Name, models.Background)
		}
		if prev, dup := l.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate label id %d (%q and %q)", t.ID, prev.Name, t.Name)
		}
		if t.Color != nil {
			for _, c := range t.Color {
				if c < 0 || c > 1 {
					return nil, fmt.Errorf("label %d: color component %g outside [0,1]", t.ID, c)
				}
			}
		}
		l.byID[t.ID] = t
		l.ids = append(l.ids, t.ID)
	}
	sort.Slice(l.ids, func(i, j int) bool { return l.ids[i] < l.ids[j] })
	return l, nil
}

// LoadLabels decodes a JSON array of {"id", "name", "color"} objects
func LoadLabels(r io.Reader) (*Labels, error) {
	var tissues []models.Tissue
	if err := json.NewDecoder(r).Decode(&tissues); err != nil {
		return nil, fmt.Errorf("error decoding labels: %w", err)
	}
	return NewLabels(tissues)
}

// LoadLabelsFile reads a label table from disk
func LoadLabelsFile(path string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening labels: %w", err)
	}
	defer f.Close()
	return LoadLabels(f)
}

// Get returns the label of a tissue id
func (l *Labels) Get(id uint8) (models.Tissue, bool) {
	t, ok := l.byID[id]
	return t, ok
}

// IDs returns the labelled tissue ids in ascending order
func (l *Labels) IDs() []uint8 {
	return append([]uint8(nil), l.ids...)
}

// Len returns the number of labels
func (l *Labels) Len() int {
	return len(l.ids)
}
