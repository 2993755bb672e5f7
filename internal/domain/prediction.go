package domain

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// RiskLabel is the binary classifier output.
type RiskLabel int

const (
	NoRisk       RiskLabel = 0
	ElevatedRisk RiskLabel = 1
)

// ParseRiskLabel accepts only 0 and 1.
func ParseRiskLabel(v int) (RiskLabel, error) {
	switch v {
	case 0:
		return NoRisk, nil
	case 1:
		return ElevatedRisk, nil
	default:
		return 0, fmt.Errorf("risk label %d is not binary", v)
	}
}

// Variant names a trained model flavour.
type Variant string

const (
	VariantBase  Variant = "base"
	VariantSMOTE Variant = "smote"
)

// VariantFor maps the rebalancing flag to a model variant.
func VariantFor(useRebalancing bool) Variant {
	if useRebalancing {
		return VariantSMOTE
	}
	return VariantBase
}

// Prediction is the transient outcome of one classifier call.
type Prediction struct {
	Forest      string    `json:"forest"`
	Variant     Variant   `json:"variant"`
	Label       RiskLabel `json:"label"`
	Probability float64   `json:"probability"`
}

// PredictionEvent is the audit record published for each served prediction.
type PredictionEvent struct {
	ID          string             `json:"id"`
	Forest      string             `json:"forest"`
	Variant     Variant            `json:"variant"`
	Features    map[string]float64 `json:"features"`
	Label       RiskLabel          `json:"label"`
	Probability float64            `json:"probability"`
	PredictedAt time.Time          `json:"predicted_at"`
}

// NewPredictionEvent stamps pred with a fresh id and the current time.
func NewPredictionEvent(pred Prediction, features map[string]float64) PredictionEvent {
	return PredictionEvent{
		ID:          uuid.NewString(),
		Forest:      pred.Forest,
		Variant:     pred.Variant,
		Features:    maps.Clone(features),
		Label:       pred.Label,
		Probability: pred.Probability,
		PredictedAt: Now(),
	}
}
