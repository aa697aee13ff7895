package alerting

import (
	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
)

// Evaluate reports whether currentPrice satisfies the given condition.
//
// It is a pure function with no side effects:
//   - above:  currentPrice > target
//   - below:  currentPrice < target
//   - equals: |currentPrice - target| <= target * 0.5%
//
// Unknown condition kinds are rejected when the alert is created; if one
// still reaches this function it is treated as never satisfied.
func Evaluate(currentPrice decimal.Decimal, kind string, target decimal.Decimal) bool {
	switch kind {
	case models.ConditionAbove:
		return currentPrice.GreaterThan(target)
	case models.ConditionBelow:
		return currentPrice.LessThan(target)
	case models.ConditionEquals:
		tolerance := target.Mul(models.EqualsTolerance()).Abs()
		return currentPrice.Sub(target).Abs().LessThanOrEqual(tolerance)
	default:
		return false
	}
}
