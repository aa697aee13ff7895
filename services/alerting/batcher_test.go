package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch_backend/models"
)

func TestGroupBySymbol(t *testing.T) {
	alerts := []models.Alert{
		{ID: 1, Symbol: "EURUSD", Timeframe: models.TimeframeH1},
		{ID: 2, Symbol: "BTCUSD", Timeframe: models.TimeframeM15},
		{ID: 3, Symbol: "EURUSD", Timeframe: models.TimeframeD1},
		{ID: 4, Symbol: "XAUUSD", Timeframe: models.TimeframeH4},
		{ID: 5, Symbol: "BTCUSD", Timeframe: models.TimeframeM15},
	}

	symbols, groups := GroupBySymbol(alerts)

	// Symbols appear in first-seen order
	assert.Equal(t, []string{"EURUSD", "BTCUSD", "XAUUSD"}, symbols)

	// Alerts keep insertion order within a group, regardless of timeframe
	require.Len(t, groups["EURUSD"], 2)
	assert.Equal(t, uint(1), groups["EURUSD"][0].ID)
	assert.Equal(t, uint(3), groups["EURUSD"][1].ID)

	require.Len(t, groups["BTCUSD"], 2)
	assert.Equal(t, uint(2), groups["BTCUSD"][0].ID)

	require.Len(t, groups["XAUUSD"], 1)
}

func TestGroupBySymbol_Empty(t *testing.T) {
	symbols, groups := GroupBySymbol(nil)

	assert.Empty(t, symbols)
	assert.Empty(t, groups)
}
