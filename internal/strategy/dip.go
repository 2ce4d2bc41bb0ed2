package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/validate"
)

// DipReference is the caller-supplied reference frame for dip detection.
// Which reference the broker "really" means is ambiguous upstream, so both
// are explicit inputs: a drawdown from the 52-week high or a negative
// intraday move from the session open can each trigger a buy.
type DipReference struct {
	High52Wk  decimal.Decimal
	OpenPrice decimal.Decimal
}

// Valid reports whether at least one reference point is usable.
func (r DipReference) Valid() bool {
	return r.High52Wk.IsPositive() || r.OpenPrice.IsPositive()
}

// OpportunisticDip buys a fixed dollar amount of any watched symbol whose
// price has fallen at least dipThreshold below its reference.
type OpportunisticDip struct {
	watchlist []string
	threshold decimal.Decimal
	buyAmount decimal.Decimal
	refs      map[string]DipReference
}

// NewOpportunisticDip validates the watchlist, threshold and per-hit amount.
// refs maps symbol to its reference prices; symbols without a valid
// reference are skipped at plan time, not failed.
func NewOpportunisticDip(watchlist []string, dipThreshold, buyAmountPerHit float64, refs map[string]DipReference) (*OpportunisticDip, error) {
	syms, err := validate.SymbolList(watchlist, validate.MinSymbols, validate.MaxSymbols)
	if err != nil {
		return nil, err
	}
	th, err := validate.Threshold("dipThreshold", dipThreshold, 0.0, 1.0)
	if err != nil {
		return nil, err
	}
	amount, err := validate.Amount("buyAmountPerHit", buyAmountPerHit, validate.MinAmount, validate.MaxAmount)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = map[string]DipReference{}
	}
	return &OpportunisticDip{
		watchlist: syms,
		threshold: decimal.NewFromFloat(th),
		buyAmount: amount,
		refs:      refs,
	}, nil
}

func (s *OpportunisticDip) Name() string { return "opportunistic" }

// Plan emits one BUY per watched symbol currently in a dip. A symbol exactly
// at its reference is not a dip.
func (s *OpportunisticDip) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	var intents []domain.TradeIntent
	for _, sym := range s.watchlist {
		quote, ok := snap.Quote(sym)
		if !ok || !quote.HasPrice() {
			continue
		}
		ref, ok := s.refs[sym]
		if !ok || !ref.Valid() {
			continue
		}
		last := quote.LastPrice

		dipFromHigh := decimal.Zero
		if ref.High52Wk.IsPositive() {
			dipFromHigh = ref.High52Wk.Sub(last).Div(ref.High52Wk)
		}
		intraday := decimal.Zero
		if ref.OpenPrice.IsPositive() {
			intraday = last.Sub(ref.OpenPrice).Div(ref.OpenPrice)
		}

		isDip := dipFromHigh.GreaterThanOrEqual(s.threshold) ||
			(intraday.IsNegative() && intraday.Neg().GreaterThanOrEqual(s.threshold))
		if !isDip {
			continue
		}

		shares := wholeShares(s.buyAmount, last)
		if shares == 0 {
			continue
		}
		rationale := fmt.Sprintf("dip %s%% from 52wk high, %s%% intraday",
			dipFromHigh.Mul(decimal.NewFromInt(100)).Round(2),
			intraday.Mul(decimal.NewFromInt(100)).Round(2))
		intents = append(intents, newEquityIntent(s.Name(), sym, domain.Buy, shares, last, rationale))
	}
	return intents
}
