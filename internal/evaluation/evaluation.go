// Package evaluation computes classifier diagnostics over a forest's
// historical table: ROC and precision-recall curves, the confusion matrix at
// the model's decision threshold, and ranked feature importances.
package evaluation

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/model"
)

// ROCPoint is one operating point of the ROC curve.
type ROCPoint struct {
	Threshold float64 `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
}

// PRPoint is one operating point of the precision-recall curve.
type PRPoint struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Confusion is the 2x2 confusion matrix.
type Confusion struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Importance pairs a feature with its weight in the model.
type Importance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Report holds every diagnostic for one (forest, variant) model.
type Report struct {
	Forest    string         `json:"forest"`
	Variant   domain.Variant `json:"variant"`
	Samples   int            `json:"samples"`
	Positives int            `json:"positives"`

	ROC              []ROCPoint `json:"roc"`
	AUC              *float64   `json:"auc,omitempty"` // nil when only one class is present
	PR               []PRPoint  `json:"pr"`
	AveragePrecision *float64   `json:"average_precision,omitempty"`

	Confusion Confusion `json:"confusion"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`

	Importances []Importance `json:"importances,omitempty"`
}

type scored struct {
	score float64
	label int
}

// Evaluate runs clf over every row of ds.
func Evaluate(clf model.Classifier, ds *domain.Dataset, variant domain.Variant) (*Report, error) {
	if err := domain.CheckColumns(clf.FeatureNames(), ds.Columns()); err != nil {
		return nil, err
	}

	r := &Report{Forest: ds.Forest(), Variant: variant, Samples: ds.Len()}
	points := make([]scored, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		p, err := clf.PredictProbability(row)
		if err != nil {
			return nil, fmt.Errorf("score row %d: %w", i+1, err)
		}
		label, err := clf.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("predict row %d: %w", i+1, err)
		}
		actual := ds.Target(i)
		r.Positives += actual
		r.Confusion.add(actual, label)
		points = append(points, scored{score: p, label: actual})
	}

	r.summarize()
	r.ROC, r.AUC = rocCurve(points, r.Positives, r.Samples-r.Positives)
	r.PR, r.AveragePrecision = prCurve(points, r.Positives)
	r.Importances = RankImportances(clf.FeatureNames(), clf.FeatureImportances())
	return r, nil
}

func (c *Confusion) add(actual, predicted int) {
	switch {
	case actual == 1 && predicted == 1:
		c.TP++
	case actual == 1:
		c.FN++
	case predicted == 1:
		c.FP++
	default:
		c.TN++
	}
}

func (r *Report) summarize() {
	c := r.Confusion
	r.Accuracy = ratio(c.TP+c.TN, r.Samples)
	r.Precision = ratio(c.TP, c.TP+c.FP)
	r.Recall = ratio(c.TP, c.TP+c.FN)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
}

// sortedThresholds orders points by descending score and returns the index
// just past each run of equal scores.
func sortedThresholds(points []scored) []int {
	slices.SortStableFunc(points, func(a, b scored) int { return cmp.Compare(b.score, a.score) })
	var cuts []int
	for i := range points {
		if i == len(points)-1 || points[i+1].score != points[i].score {
			cuts = append(cuts, i+1)
		}
	}
	return cuts
}

func rocCurve(points []scored, positives, negatives int) ([]ROCPoint, *float64) {
	if positives == 0 || negatives == 0 {
		return nil, nil
	}
	curve := []ROCPoint{{Threshold: math.Inf(1)}}
	var tp, fp, start int
	var auc float64
	for _, end := range sortedThresholds(points) {
		for _, p := range points[start:end] {
			if p.label == 1 {
				tp++
			} else {
				fp++
			}
		}
		start = end
		prev := curve[len(curve)-1]
		pt := ROCPoint{
			Threshold: points[end-1].score,
			FPR:       float64(fp) / float64(negatives),
			TPR:       float64(tp) / float64(positives),
		}
		auc += (pt.FPR - prev.FPR) * (pt.TPR + prev.TPR) / 2
		curve = append(curve, pt)
	}
	// +Inf does not survive JSON encoding.
	curve[0].Threshold = math.MaxFloat64
	return curve, &auc
}

func prCurve(points []scored, positives int) ([]PRPoint, *float64) {
	if positives == 0 {
		return nil, nil
	}
	var curve []PRPoint
	var tp, fp, start int
	var ap, prevRecall float64
	for _, end := range sortedThresholds(points) {
		for _, p := range points[start:end] {
			if p.label == 1 {
				tp++
			} else {
				fp++
			}
		}
		start = end
		pt := PRPoint{
			Threshold: points[end-1].score,
			Precision: float64(tp) / float64(tp+fp),
			Recall:    float64(tp) / float64(positives),
		}
		ap += (pt.Recall - prevRecall) * pt.Precision
		prevRecall = pt.Recall
		curve = append(curve, pt)
	}
	return curve, &ap
}

// RankImportances pairs names with weights, heaviest first. Returns nil when
// the model carries no importances.
func RankImportances(names []string, weights []float64) []Importance {
	if len(weights) == 0 || len(weights) != len(names) {
		return nil
	}
	out := make([]Importance, len(names))
	for i, n := range names {
		out[i] = Importance{Feature: n, Weight: weights[i]}
	}
	slices.SortStableFunc(out, func(a, b Importance) int { return cmp.Compare(b.Weight, a.Weight) })
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
