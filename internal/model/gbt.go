package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
)

// GradientBoosting is a binary gradient-boosted tree ensemble. The raw score
// is InitScore + LearningRate * sum(leaf values); the probability of class 1
// is its logistic transform.
type GradientBoosting struct {
	Forest       string    `json:"forest,omitempty"`
	Variant      string    `json:"variant,omitempty"`
	Features     []string  `json:"feature_names"`
	InitScore    float64   `json:"init_score"`
	LearningRate float64   `json:"learning_rate"`
	Threshold    float64   `json:"threshold"`
	Trees        []Tree    `json:"trees"`
	Importances  []float64 `json:"feature_importances,omitempty"`
}

// Tree is a regression tree stored as a flat node array; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Feature >= 0 and a leaf when Feature == -1.
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// DecodeGradientBoosting parses and validates a JSON artifact.
func DecodeGradientBoosting(r io.Reader) (*GradientBoosting, error) {
	var m GradientBoosting
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode gradient boosting model: %w", err)
	}
	if m.Threshold == 0 {
		m.Threshold = 0.5
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every tree is well formed: child indexes in range,
// split features in range, and no cycles reachable from the root.
func (m *GradientBoosting) Validate() error {
	n := len(m.Features)
	if n == 0 {
		return fmt.Errorf("model has no feature names")
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold %g outside (0, 1)", m.Threshold)
	}
	if m.Importances != nil && len(m.Importances) != n {
		return fmt.Errorf("%d feature importances for %d features", len(m.Importances), n)
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, node := range t.Nodes {
			if node.Feature == -1 {
				continue
			}
			if node.Feature < 0 || node.Feature >= n {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", ti, ni, node.Feature, n)
			}
			// Children always follow their parent in sklearn's depth-first layout.
			for _, child := range []int{node.Left, node.Right} {
				if child <= ni || child >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d has child %d out of range", ti, ni, child)
				}
			}
		}
	}
	return nil
}

// FeatureNames implements Classifier.
func (m *GradientBoosting) FeatureNames() []string { return slices.Clone(m.Features) }

// FeatureImportances implements Classifier.
func (m *GradientBoosting) FeatureImportances() []float64 { return slices.Clone(m.Importances) }

// DecisionFunction returns the raw log-odds score for x.
func (m *GradientBoosting) DecisionFunction(x []float64) (float64, error) {
	if err := checkWidth(x, len(m.Features)); err != nil {
		return 0, err
	}
	score := m.InitScore
	for _, t := range m.Trees {
		score += m.LearningRate * t.leafValue(x)
	}
	return score, nil
}

// PredictProbability implements Classifier.
func (m *GradientBoosting) PredictProbability(x []float64) (float64, error) {
	score, err := m.DecisionFunction(x)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-score)), nil
}

// Predict implements Classifier. A probability equal to the threshold is class 0.
func (m *GradientBoosting) Predict(x []float64) (int, error) {
	p, err := m.PredictProbability(x)
	if err != nil {
		return 0, err
	}
	if p > m.Threshold {
		return 1, nil
	}
	return 0, nil
}

func (t Tree) leafValue(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Feature == -1 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
