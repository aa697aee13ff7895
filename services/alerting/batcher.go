package alerting

import "pricewatch_backend/models"

// GroupBySymbol groups alerts by symbol so the price source is queried at
// most once per distinct symbol per check.
//
// The returned slice lists symbols in first-seen order and alerts keep
// their insertion order within each group. Timeframe is deliberately not a
// partition key: alerts on the same symbol with different timeframes share
// one price fetch.
func GroupBySymbol(alerts []models.Alert) ([]string, map[string][]models.Alert) {
	symbols := make([]string, 0, len(alerts))
	groups := make(map[string][]models.Alert, len(alerts))

	for _, alert := range alerts {
		if _, seen := groups[alert.Symbol]; !seen {
			symbols = append(symbols, alert.Symbol)
		}
		groups[alert.Symbol] = append(groups[alert.Symbol], alert)
	}

	return symbols, groups
}
