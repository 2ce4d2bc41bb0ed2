// Package executor mediates between computed trade intents and the broker
// gateway. Each intent moves PENDING -> {PREVIEWED | SUBMITTED | FAILED}
// exactly once; a failed submission never blocks the rest of the batch and
// is never retried here (broker state after a partial failure is unknown).
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

const (
	defaultParallelism = 4
	defaultRatePerSec  = 2
)

// Config holds mediator construction parameters.
type Config struct {
	Gateway   ports.BrokerGateway
	Logger    ports.Logger
	AccountID string
	// Parallelism bounds concurrent submissions; RatePerSec should match the
	// broker's order rate limit. Zero values take defaults.
	Parallelism int
	RatePerSec  float64
}

// Mediator executes intent batches. One Mediator lives for a process
// invocation; its duplicate guard spans all batches executed through it.
type Mediator struct {
	gateway     ports.BrokerGateway
	logger      ports.Logger
	accountID   string
	parallelism int
	limiter     *rate.Limiter

	mu        sync.Mutex
	submitted map[string]struct{} // DedupeKeys already sent live
}

// New creates a mediator.
func New(cfg Config) (*Mediator, error) {
	if cfg.Gateway == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("gateway and logger are required for mediator")
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("accountID is required for mediator")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	return &Mediator{
		gateway:     cfg.Gateway,
		logger:      cfg.Logger,
		accountID:   cfg.AccountID,
		parallelism: cfg.Parallelism,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		submitted:   make(map[string]struct{}),
	}, nil
}

// Execute runs a batch in the given mode and returns one terminal result per
// intent, in intent order. In live mode it joins all outstanding submissions
// before returning. The only batch-level error is a duplicate-guard trip: a
// (symbol, side, strategyTag) already submitted in this process invocation
// rejects the batch before anything is sent.
func (m *Mediator) Execute(ctx context.Context, mode domain.Mode, intents []domain.TradeIntent) ([]domain.ExecutionResult, error) {
	if mode == domain.ModeDryRun {
		return m.preview(ctx, intents), nil
	}
	return m.submit(ctx, intents)
}

// preview records every intent as a non-binding preview without contacting
// the gateway.
func (m *Mediator) preview(ctx context.Context, intents []domain.TradeIntent) []domain.ExecutionResult {
	results := make([]domain.ExecutionResult, len(intents))
	for i, intent := range intents {
		results[i] = domain.ExecutionResult{
			Intent:     intent,
			Status:     domain.StatusPreviewed,
			ReasonCode: "dry_run",
		}
	}
	m.logger.Info(ctx, "Batch previewed, no orders placed", map[string]interface{}{"intents": len(intents)})
	return results
}

func (m *Mediator) submit(ctx context.Context, intents []domain.TradeIntent) ([]domain.ExecutionResult, error) {
	// Guard first: nothing is sent if the batch repeats a triple already
	// submitted in this invocation. Duplicates inside the batch fail
	// individually, first occurrence wins.
	dupInBatch := make(map[int]bool, len(intents))
	m.mu.Lock()
	seen := make(map[string]struct{}, len(intents))
	for i, intent := range intents {
		key := intent.DedupeKey()
		if _, done := m.submitted[key]; done {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ports.ErrDuplicateSubmission, key)
		}
		if _, dup := seen[key]; dup {
			dupInBatch[i] = true
			continue
		}
		seen[key] = struct{}{}
	}
	for key := range seen {
		m.submitted[key] = struct{}{}
	}
	m.mu.Unlock()

	results := make([]domain.ExecutionResult, len(intents))
	sem := make(chan struct{}, m.parallelism)
	var wg sync.WaitGroup
	for i := range intents {
		if dupInBatch[i] {
			results[i] = domain.ExecutionResult{
				Intent:     intents[i],
				Status:     domain.StatusFailed,
				ReasonCode: "duplicate",
				Err:        fmt.Errorf("%w: %s", ports.ErrDuplicateSubmission, intents[i].DedupeKey()),
			}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[slot] = m.submitOne(ctx, intents[slot])
		}(i)
	}
	wg.Wait()
	return results, nil
}

// submitOne owns its intent and result slot exclusively.
func (m *Mediator) submitOne(ctx context.Context, intent domain.TradeIntent) domain.ExecutionResult {
	if err := m.limiter.Wait(ctx); err != nil {
		return failed(intent, "canceled", fmt.Errorf("%w: %v", ports.ErrContextCanceled, err))
	}

	spec := ports.OrderSpec{
		Symbol:        intent.Symbol,
		AssetType:     intent.AssetType,
		Side:          intent.Side,
		Quantity:      intent.Quantity,
		ClientOrderID: intent.ID,
	}
	if intent.Option != nil {
		spec.Symbol = intent.Option.ContractSymbol
		price, _ := intent.EstimatedPrice.Float64()
		spec.LimitPrice = price
	}

	ack, err := m.gateway.SubmitOrder(ctx, m.accountID, spec)
	if err != nil {
		m.logger.Error(ctx, err, "Order submission failed", map[string]interface{}{
			"symbol":   intent.Symbol,
			"side":     intent.Side,
			"strategy": intent.StrategyTag,
		})
		return failed(intent, reasonCode(err), fmt.Errorf("%w: %v", ports.ErrOrderPlacementFailed, err))
	}

	m.logger.Info(ctx, "Order submitted", map[string]interface{}{
		"symbol":   intent.Symbol,
		"side":     intent.Side,
		"quantity": intent.Quantity,
		"orderID":  ack.OrderID,
		"strategy": intent.StrategyTag,
	})
	return domain.ExecutionResult{
		Intent:        intent,
		Status:        domain.StatusSubmitted,
		BrokerOrderID: ack.OrderID,
		ReasonCode:    "submitted",
	}
}

func failed(intent domain.TradeIntent, reason string, err error) domain.ExecutionResult {
	return domain.ExecutionResult{
		Intent:     intent,
		Status:     domain.StatusFailed,
		ReasonCode: reason,
		Err:        err,
	}
}

// reasonCode maps gateway errors to the sanitized codes surfaced to users;
// full detail stays on the audit record.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ports.ErrOrderRejected):
		return "rejected"
	case errors.Is(err, ports.ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ports.ErrTimeout):
		return "timeout"
	default:
		return "gateway_error"
	}
}
