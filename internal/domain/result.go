package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionResult is the terminal outcome of one intent. It is never mutated
// after creation; ownership passes to the result reporter.
type ExecutionResult struct {
	Intent        TradeIntent
	Status        IntentStatus
	BrokerOrderID string // set on SUBMITTED
	ReasonCode    string // sanitized, user-facing (e.g. "duplicate", "gateway_error")
	Err           error  // full diagnostic detail, audit-only
}

// Summary aggregates a batch's outcomes.
type Summary struct {
	Total           int
	Previewed       int
	Submitted       int
	Failed          int
	EstimatedAmount decimal.Decimal // previewed intents, non-binding
	RealizedAmount  decimal.Decimal // submitted intents
}

// BatchResult is the unit returned to CLI/dashboard callers: the computed
// intents, their per-intent outcomes and the aggregate summary.
type BatchResult struct {
	Strategy string
	Mode     Mode
	Intents  []TradeIntent
	Results  []ExecutionResult
	Summary  Summary
}

// AuditRecord is one flat, serializable row per intent outcome, with uniform
// field names across strategies so tabular display needs no per-strategy
// rendering logic.
type AuditRecord struct {
	Timestamp     time.Time
	StrategyTag   string
	Symbol        string
	Side          Side
	Quantity      int64
	Price         decimal.Decimal
	Amount        decimal.Decimal
	Status        IntentStatus
	BrokerOrderID string
	Detail        string // full diagnostic text, operators only
}
