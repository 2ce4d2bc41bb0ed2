package app

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/domain"
	"stockpilot/internal/executor"
	"stockpilot/internal/ports"
	"stockpilot/internal/report"
	"stockpilot/internal/snapshot"
	"stockpilot/internal/strategy"
	"stockpilot/internal/validate"
)

// StrategyParams carries the per-run strategy parameters. Each strategy
// reads the subset it needs; constructors reject malformed values before any
// trade logic executes.
type StrategyParams struct {
	Symbols          []string
	TotalAmount      float64
	AvailableCash    float64
	TargetAllocation map[string]float64
	Threshold        float64
	DipThreshold     float64
	BuyAmountPerHit  float64
	DaysToExpiry     int
	OTMPercentage    float64
}

// Service wires the decision engine to its collaborators: snapshot builder,
// execution mediator and audit repository.
type Service struct {
	logger   ports.Logger
	gateway  ports.BrokerGateway
	builder  *snapshot.Builder
	mediator *executor.Mediator
	audit    ports.AuditRepository
	account  string
}

// NewService creates the application service instance.
func NewService(
	logger ports.Logger,
	gateway ports.BrokerGateway,
	mediator *executor.Mediator,
	audit ports.AuditRepository,
	accountID string,
) (*Service, error) {
	if logger == nil || gateway == nil || mediator == nil || audit == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	if accountID == "" {
		return nil, fmt.Errorf("accountID is required for Service")
	}
	builder, err := snapshot.NewBuilder(gateway, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger:   logger,
		gateway:  gateway,
		builder:  builder,
		mediator: mediator,
		audit:    audit,
		account:  accountID,
	}, nil
}

// RanToday reports whether the strategy already produced live audit records
// today. The scheduler uses this to avoid double-running once-a-day
// strategies after a process restart; previews do not count.
func (s *Service) RanToday(ctx context.Context, strategyTag string) (bool, error) {
	n, err := s.audit.CountTodayByStrategy(ctx, strategyTag)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Snapshot exposes the account view for display commands.
func (s *Service) Snapshot(ctx context.Context, extraSymbols []string) (*domain.AccountSnapshot, error) {
	return s.builder.Build(ctx, s.account, extraSymbols)
}

// Run executes one strategy in the given mode: validate parameters, build
// the snapshot, plan intents, mediate execution and aggregate results.
// Validation and snapshot failures abort before any trade logic; per-intent
// submission failures are isolated inside the batch result.
func (s *Service) Run(ctx context.Context, name string, p StrategyParams, mode domain.Mode) (*domain.BatchResult, error) {
	// Fail fast on malformed parameters before any gateway traffic.
	if _, err := s.buildStrategy(name, p, nil, nil); err != nil {
		return nil, err
	}

	snap, err := s.builder.Build(ctx, s.account, s.quotedSymbols(name, p))
	if err != nil {
		return nil, err
	}
	for _, w := range snap.Warnings() {
		s.logger.Warn(ctx, "Snapshot warning", map[string]interface{}{"warning": w})
	}

	refs := s.dipReferences(name, p, snap)
	chains, err := s.optionChains(ctx, name, p, snap)
	if err != nil {
		return nil, err
	}
	strat, err := s.buildStrategy(name, p, refs, chains)
	if err != nil {
		return nil, err
	}

	intents := strat.Plan(snap)
	s.logger.Info(ctx, "Strategy planned", map[string]interface{}{
		"strategy": strat.Name(),
		"intents":  len(intents),
		"mode":     mode,
	})

	results, err := s.mediator.Execute(ctx, mode, intents)
	if err != nil {
		return nil, err
	}

	batch := &domain.BatchResult{
		Strategy: strat.Name(),
		Mode:     mode,
		Intents:  intents,
		Results:  results,
		Summary:  report.Summarize(results),
	}
	s.persistAudit(ctx, batch)
	return batch, nil
}

// buildStrategy maps a strategy name and parameters onto a variant. With
// nil refs and chains it still performs full parameter validation, which is
// how Run rejects bad input before touching the gateway.
func (s *Service) buildStrategy(
	name string,
	p StrategyParams,
	refs map[string]strategy.DipReference,
	chains map[string][]ports.OptionContract,
) (strategy.Strategy, error) {
	switch name {
	case "dca":
		return strategy.NewDollarCostAveraging(p.Symbols, p.TotalAmount)
	case "drip":
		return strategy.NewDividendReinvestment(p.AvailableCash)
	case "rebalance":
		return strategy.NewRebalance(p.TargetAllocation, p.Threshold)
	case "opportunistic":
		return strategy.NewOpportunisticDip(p.Symbols, p.DipThreshold, p.BuyAmountPerHit, refs)
	case "covered_calls":
		return strategy.NewCoveredCallWriter(p.Symbols, p.DaysToExpiry, p.OTMPercentage, chains)
	case "protective_puts":
		return strategy.NewProtectivePutBuyer(p.Symbols, p.DaysToExpiry, p.OTMPercentage, chains)
	default:
		return nil, &validate.ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", name)}
	}
}

// quotedSymbols lists symbols the snapshot must quote beyond holdings.
func (s *Service) quotedSymbols(name string, p StrategyParams) []string {
	switch name {
	case "dca", "opportunistic":
		return p.Symbols
	case "rebalance":
		syms := make([]string, 0, len(p.TargetAllocation))
		for sym := range p.TargetAllocation {
			syms = append(syms, sym)
		}
		return syms
	default:
		return nil
	}
}

// dipReferences builds the caller-supplied dip reference frame from the
// snapshot's quote fields.
func (s *Service) dipReferences(name string, p StrategyParams, snap *domain.AccountSnapshot) map[string]strategy.DipReference {
	if name != "opportunistic" {
		return nil
	}
	refs := make(map[string]strategy.DipReference, len(p.Symbols))
	for _, raw := range p.Symbols {
		sym, err := validate.Symbol(raw)
		if err != nil {
			continue
		}
		if q, ok := snap.Quote(sym); ok {
			refs[sym] = strategy.DipReference{High52Wk: q.High52Wk, OpenPrice: q.OpenPrice}
		}
	}
	return refs
}

// optionChains fetches chains for positions eligible for an option overlay.
// A chain that cannot be fetched skips its symbol rather than failing the
// run; the snapshot itself is already built at this point.
func (s *Service) optionChains(ctx context.Context, name string, p StrategyParams, snap *domain.AccountSnapshot) (map[string][]ports.OptionContract, error) {
	if name != "covered_calls" && name != "protective_puts" {
		return nil, nil
	}
	filter := map[string]struct{}{}
	for _, raw := range p.Symbols {
		if sym, err := validate.Symbol(raw); err == nil {
			filter[sym] = struct{}{}
		}
	}
	chains := make(map[string][]ports.OptionContract)
	for _, pos := range snap.Positions() {
		if pos.Quantity < 100 {
			continue
		}
		if len(filter) > 0 {
			if _, ok := filter[pos.Symbol]; !ok {
				continue
			}
		}
		chain, err := s.gateway.GetOptionChain(ctx, pos.Symbol, p.DaysToExpiry)
		if err != nil {
			s.logger.Warn(ctx, "Option chain unavailable, skipping symbol", map[string]interface{}{
				"symbol": pos.Symbol,
				"error":  err.Error(),
			})
			continue
		}
		chains[pos.Symbol] = chain
	}
	return chains, nil
}

// persistAudit writes the batch and its records. Audit storage failure is
// surfaced as a warning, never as a run failure.
func (s *Service) persistAudit(ctx context.Context, batch *domain.BatchResult) {
	batchID, err := s.audit.CreateBatch(ctx, batch.Strategy, batch.Mode, batch.Summary)
	if err != nil {
		s.logger.Warn(ctx, "Failed to persist batch summary", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, rec := range report.AuditRecords(time.Now().UTC(), batch.Results) {
		rec := rec
		if _, err := s.audit.CreateRecord(ctx, batchID, &rec); err != nil {
			s.logger.Warn(ctx, "Failed to persist audit record", map[string]interface{}{
				"symbol": rec.Symbol,
				"error":  err.Error(),
			})
		}
	}
}
