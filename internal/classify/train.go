package classify

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const minTrainingRows = 10

var requiredColumns = []string{"flex_value", "label"}

// Train builds a model from labeled CSV with a header row carrying at least
// flex_value and label. Each class centroid is the mean flex value of its
// rows. Empty cells count as nulls.
func Train(r io.Reader) (*Model, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("input data is empty")
	}

	header, rows := records[0], records[1:]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %v", missing)
	}

	if len(rows) < minTrainingRows {
		return nil, fmt.Errorf("insufficient data: less than %d rows", minTrainingRows)
	}

	valueCol, labelCol := index["flex_value"], index["label"]
	for _, row := range rows {
		if cell(row, valueCol) == "" || cell(row, labelCol) == "" {
			return nil, errors.New("data contains null values")
		}
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var order []string
	for i, row := range rows {
		raw := cell(row, valueCol)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: flex_value %q is not a number", i+2, raw)
		}
		label := cell(row, labelCol)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		sums[label] += v
		counts[label]++
	}

	m := &Model{Classes: make([]Class, 0, len(order))}
	for _, label := range order {
		m.Classes = append(m.Classes, Class{Label: label, Centroid: sums[label] / float64(counts[label])})
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.sortClasses()
	return m, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Marshal encodes the model in the format Parse reads.
func (m *Model) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return out, nil
}
