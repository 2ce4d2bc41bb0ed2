package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
)

func result(sym string, status domain.IntentStatus, amount float64, reason string, err error) domain.ExecutionResult {
	return domain.ExecutionResult{
		Intent: domain.TradeIntent{
			Symbol:          sym,
			Side:            domain.Buy,
			Quantity:        1,
			EstimatedPrice:  domain.USD(amount),
			EstimatedAmount: domain.USD(amount),
			StrategyTag:     "dca",
		},
		Status:     status,
		ReasonCode: reason,
		Err:        err,
	}
}

func TestSummarize(t *testing.T) {
	results := []domain.ExecutionResult{
		result("SPY", domain.StatusPreviewed, 50.00, "dry_run", nil),
		result("QQQ", domain.StatusPreviewed, 33.33, "dry_run", nil),
		result("IWM", domain.StatusSubmitted, 20.00, "submitted", nil),
		result("AGG", domain.StatusFailed, 10.00, "gateway_error", errors.New("boom")),
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Previewed)
	assert.Equal(t, 1, s.Submitted)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "83.33", s.EstimatedAmount.String())
	assert.Equal(t, "20", s.RealizedAmount.String())
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.True(t, s.EstimatedAmount.IsZero())
	assert.True(t, s.RealizedAmount.IsZero())
}

func TestAuditRecords(t *testing.T) {
	at := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	results := []domain.ExecutionResult{
		result("SPY", domain.StatusSubmitted, 50.00, "submitted", nil),
		result("QQQ", domain.StatusFailed, 30.00, "gateway_error", errors.New("connection reset by peer")),
	}

	records := AuditRecords(at, results)
	require.Len(t, records, 2)

	assert.Equal(t, at, records[0].Timestamp)
	assert.Equal(t, "SPY", records[0].Symbol)
	assert.Equal(t, "dca", records[0].StrategyTag)
	assert.Equal(t, domain.StatusSubmitted, records[0].Status)
	// No error: the detail is the sanitized reason code.
	assert.Equal(t, "submitted", records[0].Detail)

	// On failure the audit detail carries the full diagnostic text.
	assert.Equal(t, "connection reset by peer", records[1].Detail)
	assert.Equal(t, domain.StatusFailed, records[1].Status)
}
