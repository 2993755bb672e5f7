package domain

import (
	"math"
	"strings"
)

// FeatureKind selects the form control that collects a feature's value.
type FeatureKind string

const (
	KindYear       FeatureKind = "year"
	KindDayOfYear  FeatureKind = "day_of_year"
	KindContinuous FeatureKind = "continuous"
	KindCount      FeatureKind = "count"
	KindBinary     FeatureKind = "binary"
	KindNumeric    FeatureKind = "numeric"
)

// FeatureDescriptor summarizes one feature column over the historical table.
type FeatureDescriptor struct {
	Name     string      `json:"name"`
	Kind     FeatureKind `json:"kind"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
	Mean     float64     `json:"mean"`
	Majority float64     `json:"majority"` // most frequent of {0,1}; meaningful for KindBinary only
}

var (
	yearColumns      = map[string]struct{}{"year": {}}
	dayOfYearColumns = map[string]struct{}{"day_of_year": {}, "doy": {}, "discovery_doy": {}}
	weatherPrefixes  = []string{"tmax", "tmin", "tavg", "prcp"}
)

// DescribeFeatures computes one descriptor per column, in column order.
// rows must be rectangular with len(columns) values each.
func DescribeFeatures(columns []string, rows [][]float64) []FeatureDescriptor {
	out := make([]FeatureDescriptor, len(columns))
	for j, name := range columns {
		d := FeatureDescriptor{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		var ones, zeros int
		for _, row := range rows {
			v := row[j]
			sum += v
			d.Min = math.Min(d.Min, v)
			d.Max = math.Max(d.Max, v)
			switch v {
			case 0:
				zeros++
			case 1:
				ones++
			}
		}
		if len(rows) > 0 {
			d.Mean = sum / float64(len(rows))
		} else {
			d.Min, d.Max = 0, 0
		}
		if ones >= zeros {
			d.Majority = 1
		}
		d.Kind = ClassifyFeature(name, len(rows) > 0 && ones+zeros == len(rows))
		out[j] = d
	}
	return out
}

// ClassifyFeature maps a column to its kind. Name rules win over the value
// rule; binaryValues reports whether every historical value is 0 or 1.
func ClassifyFeature(name string, binaryValues bool) FeatureKind {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := yearColumns[lower]; ok {
		return KindYear
	}
	if _, ok := dayOfYearColumns[lower]; ok {
		return KindDayOfYear
	}
	for _, p := range weatherPrefixes {
		if strings.HasPrefix(lower, p) {
			return KindContinuous
		}
	}
	if strings.Contains(lower, "fire") {
		return KindCount
	}
	if binaryValues {
		return KindBinary
	}
	return KindNumeric
}
