package domain

import (
	"fmt"
	"slices"
)

// TargetColumn is the label column of every preprocessed table.
const TargetColumn = "target"

// Dataset is one forest's historical daily table. It is immutable after
// construction; accessors hand out copies.
type Dataset struct {
	forest   string
	columns  []string
	rows     [][]float64
	target   []int
	features []FeatureDescriptor
}

// NewDataset validates the table shape and computes feature descriptors.
// columns excludes the target column and is kept in model input order.
func NewDataset(forest string, columns []string, rows [][]float64, target []int) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no feature columns", ErrMalformedDataset, forest)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrMalformedDataset, forest)
	}
	if len(rows) != len(target) {
		return nil, fmt.Errorf("%w: %s has %d rows but %d targets", ErrMalformedDataset, forest, len(rows), len(target))
	}

	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == TargetColumn {
			return nil, fmt.Errorf("%w: %s lists %q as a feature", ErrMalformedDataset, forest, TargetColumn)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %s has duplicate column %q", ErrMalformedDataset, forest, c)
		}
		seen[c] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: %s row %d has %d values, want %d", ErrMalformedDataset, forest, i+1, len(row), len(columns))
		}
	}
	for i, t := range target {
		if t != 0 && t != 1 {
			return nil, fmt.Errorf("%w: %s row %d target %d is not binary", ErrMalformedDataset, forest, i+1, t)
		}
	}

	ds := &Dataset{
		forest:  forest,
		columns: slices.Clone(columns),
		rows:    rows,
		target:  slices.Clone(target),
	}
	ds.features = DescribeFeatures(ds.columns, ds.rows)
	return ds, nil
}

// Forest returns the forest name the table belongs to.
func (d *Dataset) Forest() string { return d.forest }

// Columns returns the feature column names in model input order.
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

// Len returns the number of daily records.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns a copy of the i-th feature row.
func (d *Dataset) Row(i int) []float64 { return slices.Clone(d.rows[i]) }

// Target returns the label of the i-th row.
func (d *Dataset) Target(i int) int { return d.target[i] }

// Features returns the per-column descriptors computed at load time.
func (d *Dataset) Features() []FeatureDescriptor { return slices.Clone(d.features) }

// PositiveRate returns the share of rows with target 1.
func (d *Dataset) PositiveRate() float64 {
	var n int
	for _, t := range d.target {
		n += t
	}
	return float64(n) / float64(len(d.target))
}
