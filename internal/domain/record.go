package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// FeatureRecord is a single classifier input row: one value per expected
// column, in the model's column order.
type FeatureRecord struct {
	columns []string
	values  []float64
}

// NewFeatureRecord orders values by columns. Every column must have a value
// and no value may name an unknown column; missing values are never defaulted.
func NewFeatureRecord(columns []string, values map[string]float64) (FeatureRecord, error) {
	var missing, extra []string
	row := make([]float64, len(columns))
	for i, c := range columns {
		v, ok := values[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		row[i] = v
	}
	if len(values) != len(columns)-len(missing) {
		known := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			known[c] = struct{}{}
		}
		for name := range values {
			if _, ok := known[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
	}

	if len(missing) > 0 || len(extra) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing "+strings.Join(missing, ", "))
		}
		if len(extra) > 0 {
			parts = append(parts, "unexpected "+strings.Join(extra, ", "))
		}
		return FeatureRecord{}, fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
	}

	return FeatureRecord{columns: slices.Clone(columns), values: row}, nil
}

// Columns returns the column names in order.
func (r FeatureRecord) Columns() []string { return slices.Clone(r.columns) }

// Values returns the row values in column order.
func (r FeatureRecord) Values() []float64 { return slices.Clone(r.values) }

// Map returns the record as a name -> value map.
func (r FeatureRecord) Map() map[string]float64 {
	m := make(map[string]float64, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// CheckColumns reports ErrSchemaMismatch unless got equals want element-wise.
func CheckColumns(want, got []string) error {
	if slices.Equal(want, got) {
		return nil
	}
	if len(want) != len(got) {
		return fmt.Errorf("%w: model expects %d columns, dataset has %d", ErrSchemaMismatch, len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: column %d is %q, model expects %q", ErrSchemaMismatch, i, got[i], want[i])
		}
	}
	return nil
}
