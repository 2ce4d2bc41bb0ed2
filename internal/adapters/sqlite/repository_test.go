package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "audit.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(tag, sym string, status domain.IntentStatus, at time.Time) *domain.AuditRecord {
	return &domain.AuditRecord{
		Timestamp:   at,
		StrategyTag: tag,
		Symbol:      sym,
		Side:        domain.Buy,
		Quantity:    2,
		Price:       domain.USD(50.25),
		Amount:      domain.USD(100.50),
		Status:      status,
		Detail:      "submitted",
	}
}

func TestNewRepository(t *testing.T) {
	t.Run("requires logger", func(t *testing.T) {
		_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
		require.Error(t, err)
	})

	t.Run("creates data directory and schema", func(t *testing.T) {
		repo := newTestRepo(t)
		require.NotNil(t, repo)
	})
}

func TestRepository_CreateBatchAndRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	summary := domain.Summary{
		Total:           2,
		Submitted:       2,
		RealizedAmount:  domain.USD(201.00),
		EstimatedAmount: domain.USD(0),
	}
	batchID, err := repo.CreateBatch(ctx, "dca", domain.ModeLive, summary)
	require.NoError(t, err)
	assert.Positive(t, batchID)

	now := time.Now().UTC()
	rec := record("dca", "SPY", domain.StatusSubmitted, now)
	rec.BrokerOrderID = "ORD-42"
	id, err := repo.CreateRecord(ctx, batchID, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	found, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	got := found[0]
	assert.Equal(t, "SPY", got.Symbol)
	assert.Equal(t, "dca", got.StrategyTag)
	assert.Equal(t, domain.Buy, got.Side)
	assert.Equal(t, int64(2), got.Quantity)
	assert.Equal(t, "50.25", got.Price.String())
	assert.Equal(t, "100.5", got.Amount.String())
	assert.Equal(t, domain.StatusSubmitted, got.Status)
	assert.Equal(t, "ORD-42", got.BrokerOrderID)
	assert.Equal(t, "submitted", got.Detail)
}

func TestRepository_FindRecent_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	batchID, err := repo.CreateBatch(ctx, "dca", domain.ModeDryRun, domain.Summary{Total: 3})
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, sym := range []string{"SPY", "QQQ", "IWM"} {
		_, err := repo.CreateRecord(ctx, batchID, record("dca", sym, domain.StatusPreviewed, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	found, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	// Newest first.
	assert.Equal(t, "IWM", found[0].Symbol)
	assert.Equal(t, "QQQ", found[1].Symbol)
}

func TestRepository_FindRecent_Empty(t *testing.T) {
	repo := newTestRepo(t)
	found, err := repo.FindRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRepository_CountTodayByStrategy(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	batchID, err := repo.CreateBatch(ctx, "drip", domain.ModeLive, domain.Summary{Total: 2})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = repo.CreateRecord(ctx, batchID, record("drip", "SPY", domain.StatusSubmitted, now))
	require.NoError(t, err)
	_, err = repo.CreateRecord(ctx, batchID, record("drip", "QQQ", domain.StatusSubmitted, now))
	require.NoError(t, err)
	_, err = repo.CreateRecord(ctx, batchID, record("dca", "SPY", domain.StatusSubmitted, now.AddDate(0, 0, -3)))
	require.NoError(t, err)

	count, err := repo.CountTodayByStrategy(ctx, "drip")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountTodayByStrategy(ctx, "rebalance")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRepository_CountTodayByStrategy_IgnoresDryRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// A morning preview must not make the strategy look as if it already
	// ran; only live batches count toward the daily gate.
	previewID, err := repo.CreateBatch(ctx, "dca", domain.ModeDryRun, domain.Summary{Total: 1, Previewed: 1})
	require.NoError(t, err)
	_, err = repo.CreateRecord(ctx, previewID, record("dca", "SPY", domain.StatusPreviewed, time.Now().UTC()))
	require.NoError(t, err)

	count, err := repo.CountTodayByStrategy(ctx, "dca")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	liveID, err := repo.CreateBatch(ctx, "dca", domain.ModeLive, domain.Summary{Total: 1, Submitted: 1})
	require.NoError(t, err)
	_, err = repo.CreateRecord(ctx, liveID, record("dca", "SPY", domain.StatusSubmitted, time.Now().UTC()))
	require.NoError(t, err)

	count, err = repo.CountTodayByStrategy(ctx, "dca")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
