package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the point-in-time market data for one symbol.
type Quote struct {
	Symbol    string
	LastPrice decimal.Decimal
	OpenPrice decimal.Decimal // session open, zero when unavailable
	High52Wk  decimal.Decimal // 52-week high, zero when unavailable
}

// HasPrice reports whether the quote carries a usable last price. Symbols
// without a usable price are excluded from candidate computation and must
// never be divided into.
func (q Quote) HasPrice() bool {
	return q.LastPrice.IsPositive()
}

// Position is one equity holding inside a snapshot.
type Position struct {
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
	LastPrice   decimal.Decimal
}

// MarketValue returns quantity times last price, rounded to cents.
func (p Position) MarketValue() decimal.Decimal {
	return Cents(p.LastPrice.Mul(decimal.NewFromInt(p.Quantity)))
}

// AccountSnapshot is a read-only view of balances, positions and quotes at
// one point in time. It is built once per invocation and never mutated
// afterwards; strategies only read from it.
type AccountSnapshot struct {
	takenAt          time.Time
	liquidationValue decimal.Decimal
	cashAvailable    decimal.Decimal
	buyingPower      decimal.Decimal
	positions        map[string]Position
	quotes           map[string]Quote
	warnings         []string
}

// NewAccountSnapshot assembles a snapshot. Callers (the snapshot builder)
// pass only validated positions; warnings carry the records that were
// dropped on the way in.
func NewAccountSnapshot(
	takenAt time.Time,
	liquidationValue, cashAvailable, buyingPower decimal.Decimal,
	positions []Position,
	quotes []Quote,
	warnings []string,
) *AccountSnapshot {
	pm := make(map[string]Position, len(positions))
	for _, p := range positions {
		pm[p.Symbol] = p
	}
	qm := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		qm[q.Symbol] = q
	}
	w := make([]string, len(warnings))
	copy(w, warnings)
	return &AccountSnapshot{
		takenAt:          takenAt,
		liquidationValue: liquidationValue,
		cashAvailable:    cashAvailable,
		buyingPower:      buyingPower,
		positions:        pm,
		quotes:           qm,
		warnings:         w,
	}
}

// TakenAt returns the snapshot timestamp.
func (s *AccountSnapshot) TakenAt() time.Time { return s.takenAt }

// LiquidationValue returns the account's total liquidation value.
func (s *AccountSnapshot) LiquidationValue() decimal.Decimal { return s.liquidationValue }

// CashAvailable returns the cash available for trading.
func (s *AccountSnapshot) CashAvailable() decimal.Decimal { return s.cashAvailable }

// BuyingPower returns the account buying power.
func (s *AccountSnapshot) BuyingPower() decimal.Decimal { return s.buyingPower }

// Position looks up a holding by symbol.
func (s *AccountSnapshot) Position(symbol string) (Position, bool) {
	p, ok := s.positions[symbol]
	return p, ok
}

// Positions returns all holdings in symbol-ascending order.
func (s *AccountSnapshot) Positions() []Position {
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Quote looks up market data by symbol.
func (s *AccountSnapshot) Quote(symbol string) (Quote, bool) {
	q, ok := s.quotes[symbol]
	return q, ok
}

// TotalMarketValue sums the market value of all holdings.
func (s *AccountSnapshot) TotalMarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.positions {
		total = total.Add(p.MarketValue())
	}
	return Cents(total)
}

// Warnings returns the records dropped during snapshot construction.
func (s *AccountSnapshot) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}
