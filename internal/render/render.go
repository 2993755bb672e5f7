// Package render maps a risk label to the alert shown on the prediction page.
package render

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// Level is the alert style, named after the dashboard's CSS classes.
type Level string

const (
	LevelSuccess Level = "success"
	LevelDanger  Level = "danger"
)

// ErrInvalidLabel is returned for labels other than 0 and 1.
var ErrInvalidLabel = errors.New("invalid risk label")

// Alert is a styled message block.
type Alert struct {
	Level    Level  `json:"level"`
	Message  string `json:"message"`
	Emphasis bool   `json:"emphasis"`
}

// Render returns the alert for label.
func Render(label domain.RiskLabel) (Alert, error) {
	switch label {
	case domain.NoRisk:
		return Alert{Level: LevelSuccess, Message: "Low wildfire risk"}, nil
	case domain.ElevatedRisk:
		return Alert{Level: LevelDanger, Message: "Elevated wildfire risk", Emphasis: true}, nil
	default:
		return Alert{}, fmt.Errorf("%w: %d", ErrInvalidLabel, int(label))
	}
}
