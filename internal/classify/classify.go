// Package classify labels a flex value by its nearest class centroid.
//
// The model file is YAML:
//
//	classes:
//	  - label: straight
//	    centroid: 210
//	  - label: bent
//	    centroid: 780
package classify

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unknown is returned by a model without classes.
const Unknown = "unknown"

type Class struct {
	Label    string  `yaml:"label"`
	Centroid float64 `yaml:"centroid"`
}

type Model struct {
	Classes []Class `yaml:"classes"`
}

// Load reads and validates a model file.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.sortClasses()
	return &m, nil
}

func (m *Model) sortClasses() {
	sort.Slice(m.Classes, func(i, j int) bool { return m.Classes[i].Centroid < m.Classes[j].Centroid })
}

func (m *Model) validate() error {
	if len(m.Classes) == 0 {
		return errors.New("model has no classes")
	}
	seen := make(map[string]bool, len(m.Classes))
	for i, c := range m.Classes {
		if c.Label == "" {
			return fmt.Errorf("class %d: label is required", i)
		}
		if seen[c.Label] {
			return fmt.Errorf("class %d: duplicate label %q", i, c.Label)
		}
		if math.IsNaN(c.Centroid) || math.IsInf(c.Centroid, 0) {
			return fmt.Errorf("class %q: centroid must be finite", c.Label)
		}
		seen[c.Label] = true
	}
	return nil
}

// Classify returns the label whose centroid is closest to v. Ties go to the
// lower centroid. A nil model labels everything Unknown.
func (m *Model) Classify(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("flex value %v is not finite", v)
	}
	if m == nil || len(m.Classes) == 0 {
		return Unknown, nil
	}
	best := m.Classes[0]
	bestDist := math.Abs(v - best.Centroid)
	for _, c := range m.Classes[1:] {
		if d := math.Abs(v - c.Centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best.Label, nil
}
