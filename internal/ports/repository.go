package ports

import (
	"context"

	"stockpilot/internal/domain"
)

// AuditRepository persists per-intent audit records and batch summaries for
// compliance and forensic review. Records are append-only.
type AuditRepository interface {
	// CreateBatch saves a batch summary and returns its assigned ID.
	CreateBatch(ctx context.Context, strategy string, mode domain.Mode, summary domain.Summary) (int64, error)
	// CreateRecord saves one audit record under a batch.
	CreateRecord(ctx context.Context, batchID int64, rec *domain.AuditRecord) (int64, error)
	// FindRecent retrieves the most recent audit records, newest first.
	FindRecent(ctx context.Context, limit int) ([]*domain.AuditRecord, error)
	// CountTodayByStrategy counts records written today for a strategy tag
	// by live batches; previews are excluded.
	CountTodayByStrategy(ctx context.Context, strategyTag string) (int, error)
}
