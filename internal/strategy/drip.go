package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/validate"
)

// Reinvestment floors, carried over from the original account behavior:
// below minReinvestCash the whole run is a no-op, and a position whose
// proportional slice is under minReinvestSlice is skipped.
var (
	minReinvestCash  = decimal.NewFromInt(10)
	minReinvestSlice = decimal.NewFromInt(5)
)

// DividendReinvestment allocates available cash across existing positions in
// proportion to each position's share of total portfolio market value.
type DividendReinvestment struct {
	cashOverride decimal.Decimal // zero means use the snapshot's cash
}

// NewDividendReinvestment builds the variant. An availableCash of zero
// defers to the snapshot's cash available for trading; a negative value is
// rejected as a validation failure.
func NewDividendReinvestment(availableCash float64) (*DividendReinvestment, error) {
	if availableCash == 0 {
		return &DividendReinvestment{}, nil
	}
	cash, err := validate.Amount("availableCash", availableCash, validate.MinAmount, validate.MaxAmount)
	if err != nil {
		return nil, err
	}
	return &DividendReinvestment{cashOverride: cash}, nil
}

func (s *DividendReinvestment) Name() string { return "drip" }

// Plan emits at most one BUY per eligible position, weighted by market value
// share. Positions whose slice buys zero whole shares are skipped; no cash
// at all is a no-op, not a failure.
func (s *DividendReinvestment) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	cash := snap.CashAvailable()
	if s.cashOverride.IsPositive() {
		cash = s.cashOverride
	}
	if !cash.IsPositive() || cash.LessThan(minReinvestCash) {
		return nil
	}

	positions := snap.Positions()
	totalValue := snap.TotalMarketValue()
	if !totalValue.IsPositive() {
		return nil
	}

	var intents []domain.TradeIntent
	for _, pos := range positions {
		weight := pos.MarketValue().Div(totalValue)
		slice := cash.Mul(weight)
		if slice.LessThan(minReinvestSlice) {
			continue
		}
		shares := wholeShares(slice, pos.LastPrice)
		if shares == 0 {
			continue
		}
		rationale := fmt.Sprintf("reinvest %s%% of $%s cash by market-value weight",
			weight.Mul(decimal.NewFromInt(100)).Round(2), domain.Cents(cash))
		intents = append(intents, newEquityIntent(s.Name(), pos.Symbol, domain.Buy, shares, pos.LastPrice, rationale))
	}
	return intents
}
