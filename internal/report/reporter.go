// Package report aggregates mediator output into batch summaries and flat
// audit records. Pure functions: inputs are never mutated and aggregation
// always terminates.
package report

import (
	"time"

	"stockpilot/internal/domain"
)

// Summarize counts outcomes by status and sums estimated (previewed) and
// realized (submitted) amounts.
func Summarize(results []domain.ExecutionResult) domain.Summary {
	s := domain.Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.StatusPreviewed:
			s.Previewed++
			s.EstimatedAmount = s.EstimatedAmount.Add(r.Intent.EstimatedAmount)
		case domain.StatusSubmitted:
			s.Submitted++
			s.RealizedAmount = s.RealizedAmount.Add(r.Intent.EstimatedAmount)
		case domain.StatusFailed:
			s.Failed++
		}
	}
	s.EstimatedAmount = domain.Cents(s.EstimatedAmount)
	s.RealizedAmount = domain.Cents(s.RealizedAmount)
	return s
}

// AuditRecords converts results into per-intent audit rows. Detail carries
// the full diagnostic error text for operators; user-facing surfaces show
// only the sanitized reason code on the result itself.
func AuditRecords(at time.Time, results []domain.ExecutionResult) []domain.AuditRecord {
	records := make([]domain.AuditRecord, 0, len(results))
	for _, r := range results {
		detail := r.ReasonCode
		if r.Err != nil {
			detail = r.Err.Error()
		}
		records = append(records, domain.AuditRecord{
			Timestamp:     at,
			StrategyTag:   r.Intent.StrategyTag,
			Symbol:        r.Intent.Symbol,
			Side:          r.Intent.Side,
			Quantity:      r.Intent.Quantity,
			Price:         r.Intent.EstimatedPrice,
			Amount:        r.Intent.EstimatedAmount,
			Status:        r.Status,
			BrokerOrderID: r.BrokerOrderID,
			Detail:        detail,
		})
	}
	return records
}
