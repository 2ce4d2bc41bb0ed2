// Package strategy contains the pure decision variants: each maps an
// immutable account snapshot to an ordered list of trade intents. Variants
// never contact the broker and never fail at plan time; a missing quote,
// empty eligible set or zero-dollar trigger yields a no-op result. Malformed
// parameters are rejected by the constructors before a variant ever runs.
package strategy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
)

// Strategy plans trade intents against one snapshot. Ordering of the
// returned intents is significant only for display; the mediator may execute
// them in any order.
type Strategy interface {
	// Name returns the strategy tag stamped onto every intent it produces.
	Name() string
	// Plan computes the intents the snapshot calls for. An empty result
	// means nothing is actionable, which is not an error.
	Plan(snap *domain.AccountSnapshot) []domain.TradeIntent
}

// wholeShares returns how many whole shares the amount buys at the given
// price. Truncation guarantees the estimated spend never exceeds the amount.
func wholeShares(amount, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	n := amount.Div(price).IntPart()
	if n < 0 {
		return 0
	}
	return n
}

func newEquityIntent(tag string, sym string, side domain.Side, shares int64, price decimal.Decimal, rationale string) domain.TradeIntent {
	return domain.TradeIntent{
		ID:              uuid.NewString(),
		Symbol:          sym,
		Side:            side,
		Quantity:        shares,
		EstimatedPrice:  domain.Cents(price),
		EstimatedAmount: domain.Cents(price.Mul(decimal.NewFromInt(shares))),
		AssetType:       domain.AssetEquity,
		StrategyTag:     tag,
		Rationale:       rationale,
	}
}
