package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/validate"
)

// Rebalance sells overweight symbols and buys underweight ones to bring the
// portfolio back to a target allocation, ignoring deviations inside the
// threshold band.
type Rebalance struct {
	target    map[string]float64
	threshold decimal.Decimal
}

// NewRebalance validates the allocation map and threshold.
func NewRebalance(target map[string]float64, threshold float64) (*Rebalance, error) {
	alloc, err := validate.Allocation(target, validate.MaxAllocSize)
	if err != nil {
		return nil, err
	}
	th, err := validate.Threshold("threshold", threshold, 0.0, 1.0)
	if err != nil {
		return nil, err
	}
	return &Rebalance{target: alloc, threshold: decimal.NewFromFloat(th)}, nil
}

func (s *Rebalance) Name() string { return "rebalance" }

type rebalanceLeg struct {
	symbol string
	side   domain.Side
	value  decimal.Decimal // dollar distance to target
	price  decimal.Decimal
	held   int64
	devPct decimal.Decimal
}

// Plan walks the union of current holdings and target keys in ascending
// symbol order. SELLs close overweight deviations; BUYs close underweight
// ones but are shrunk proportionally when cash cannot cover them all, so no
// late symbol is silently dropped.
func (s *Rebalance) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	total := snap.LiquidationValue()
	if !total.IsPositive() {
		total = snap.TotalMarketValue()
	}
	if !total.IsPositive() {
		return nil
	}

	union := make(map[string]struct{}, len(s.target))
	for sym := range s.target {
		union[sym] = struct{}{}
	}
	for _, pos := range snap.Positions() {
		union[pos.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(union))
	for sym := range union {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var legs []rebalanceLeg
	for _, sym := range symbols {
		quote, ok := snap.Quote(sym)
		if !ok || !quote.HasPrice() {
			continue
		}
		current := decimal.Zero
		var held int64
		if pos, ok := snap.Position(sym); ok {
			current = pos.MarketValue().Div(total)
			held = pos.Quantity
		}
		target := decimal.NewFromFloat(s.target[sym])
		deviation := current.Sub(target)

		switch {
		case deviation.GreaterThan(s.threshold):
			legs = append(legs, rebalanceLeg{
				symbol: sym, side: domain.Sell,
				value: deviation.Mul(total), price: quote.LastPrice,
				held: held, devPct: deviation,
			})
		case deviation.LessThan(s.threshold.Neg()):
			legs = append(legs, rebalanceLeg{
				symbol: sym, side: domain.Buy,
				value: deviation.Neg().Mul(total), price: quote.LastPrice,
				held: held, devPct: deviation,
			})
		}
	}

	// Size BUY legs first so a cash shortfall shrinks all of them
	// proportionally before any intent is materialized.
	cash := snap.CashAvailable()
	if cash.IsNegative() {
		cash = decimal.Zero
	}
	// The scale is computed against raw dollar distances, not floored
	// spends: flooring happens after scaling, so each leg spends at most
	// value*scale and the batch total stays within cash.
	buyTotal := decimal.Zero
	for _, leg := range legs {
		if leg.side == domain.Buy {
			buyTotal = buyTotal.Add(leg.value)
		}
	}
	buyScale := decimal.NewFromInt(1)
	if buyTotal.GreaterThan(cash) && buyTotal.IsPositive() {
		buyScale = cash.Div(buyTotal)
	}

	var intents []domain.TradeIntent
	for _, leg := range legs {
		var shares int64
		switch leg.side {
		case domain.Sell:
			shares = wholeShares(leg.value, leg.price)
			if shares > leg.held {
				shares = leg.held
			}
		case domain.Buy:
			shares = wholeShares(leg.value.Mul(buyScale), leg.price)
		}
		if shares == 0 {
			continue
		}
		rationale := fmt.Sprintf("deviation %s%% from target weight",
			leg.devPct.Mul(decimal.NewFromInt(100)).Round(2))
		if leg.side == domain.Buy && buyScale.LessThan(decimal.NewFromInt(1)) {
			rationale += fmt.Sprintf(" (scaled to available cash, factor %s)", buyScale.Round(4))
		}
		intents = append(intents, newEquityIntent(s.Name(), leg.symbol, leg.side, shares, leg.price, rationale))
	}
	return intents
}
