package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionLeg identifies the option contract an intent acts on.
type OptionLeg struct {
	ContractSymbol string
	Strike         decimal.Decimal
	Expiry         time.Time
}

// TradeIntent is a proposed, not-yet-submitted order. It is created by a
// strategy variant, immutable once created, and consumed exactly once by the
// execution mediator.
type TradeIntent struct {
	ID              string // client-side identifier, unique per intent
	Symbol          string // underlying symbol
	Side            Side
	Quantity        int64 // shares, or contracts for option legs
	EstimatedPrice  decimal.Decimal
	EstimatedAmount decimal.Decimal
	AssetType       AssetType
	Option          *OptionLeg // nil for equity intents
	StrategyTag     string
	Rationale       string
}

// DedupeKey is the (symbol, side, strategyTag) triple the mediator guards
// against double submission within one process invocation.
func (i TradeIntent) DedupeKey() string {
	return i.Symbol + "|" + string(i.Side) + "|" + i.StrategyTag
}
