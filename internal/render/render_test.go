package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

func TestRender(t *testing.T) {
	low, err := Render(domain.NoRisk)
	require.NoError(t, err)
	assert.Equal(t, Alert{Level: LevelSuccess, Message: "Low wildfire risk"}, low)

	high, err := Render(domain.ElevatedRisk)
	require.NoError(t, err)
	assert.Equal(t, Alert{Level: LevelDanger, Message: "Elevated wildfire risk", Emphasis: true}, high)
}

func TestRender_InvalidLabel(t *testing.T) {
	for _, label := range []domain.RiskLabel{-1, 2, 99} {
		_, err := Render(label)
		require.ErrorIs(t, err, ErrInvalidLabel)
	}
}
