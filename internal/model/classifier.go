// Package model evaluates exported wildfire-risk classifiers.
//
// Two artifact formats are supported: a JSON dump of a binary gradient-boosted
// tree ensemble (sklearn GradientBoostingClassifier layout) and ONNX, run
// through onnxruntime. Both satisfy Classifier.
package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Classifier is a trained binary wildfire-risk model.
type Classifier interface {
	// FeatureNames returns the expected input columns, in order.
	FeatureNames() []string

	// Predict returns the class label, 0 or 1.
	Predict(x []float64) (int, error)

	// PredictProbability returns the probability of class 1.
	PredictProbability(x []float64) (float64, error)

	// FeatureImportances returns one weight per feature, or nil when the
	// artifact does not carry them.
	FeatureImportances() []float64
}

// Format identifies an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatONNX Format = "onnx"
)

// ParseFormat accepts "json" and "onnx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatONNX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown model format %q", s)
	}
}

// ErrFeatureCount is returned when an input row has the wrong width.
var ErrFeatureCount = errors.New("feature count mismatch")

// Load reads an artifact from path. featureNames is used by formats that do
// not embed column names (ONNX); JSON artifacts carry their own.
func Load(path string, format Format, featureNames []string) (Classifier, error) {
	switch format {
	case FormatJSON:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		m, err := DecodeGradientBoosting(f)
		if err != nil {
			return nil, err
		}
		return m, nil
	case FormatONNX:
		c, err := LoadONNX(path, featureNames)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown model format %q", format)
	}
}

func checkWidth(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("%w: got %d values, model expects %d", ErrFeatureCount, len(x), n)
	}
	return nil
}
