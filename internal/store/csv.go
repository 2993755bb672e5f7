package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// ReadDataset parses a preprocessed table: a header row, one numeric column
// per feature, and a binary target column anywhere in the header.
func ReadDataset(r io.Reader, forest string) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrMalformedDataset, forest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s header: %v", domain.ErrMalformedDataset, forest, err)
	}
	header = slices.Clone(header)

	targetIdx := -1
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == domain.TargetColumn {
			targetIdx = i
			continue
		}
		columns = append(columns, h)
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", domain.ErrMalformedDataset, forest, domain.TargetColumn)
	}

	var rows [][]float64
	var target []int
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedDataset, forest, err)
		}

		row := make([]float64, 0, len(columns))
		for i, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d column %q: %q is not a number", domain.ErrMalformedDataset, forest, line, header[i], cell)
			}
			if i == targetIdx {
				if v != 0 && v != 1 {
					return nil, fmt.Errorf("%w: %s line %d target %q is not 0 or 1", domain.ErrMalformedDataset, forest, line, cell)
				}
				target = append(target, int(v))
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %s line %d column %q is not finite", domain.ErrMalformedDataset, forest, line, header[i])
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	return domain.NewDataset(forest, columns, rows, target)
}

// parseCell reads a numeric cell. Boolean columns written as True/False read
// as 1/0.
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch {
	case strings.EqualFold(cell, "true"):
		return 1, nil
	case strings.EqualFold(cell, "false"):
		return 0, nil
	}
	return strconv.ParseFloat(cell, 64)
}
