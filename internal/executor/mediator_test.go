package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockGateway implements ports.BrokerGateway with overridable behavior and a
// call counter on SubmitOrder.
type mockGateway struct {
	mu           sync.Mutex
	submitCalls  []ports.OrderSpec
	submitOrder  func(spec ports.OrderSpec) (*ports.OrderAck, error)
	getBalances  func() (*ports.Balances, error)
	getPositions func() ([]ports.PositionRaw, error)
	getQuotes    func(symbols []string) (map[string]ports.QuoteRaw, error)
}

func (m *mockGateway) GetBalances(ctx context.Context, accountID string) (*ports.Balances, error) {
	if m.getBalances != nil {
		return m.getBalances()
	}
	return &ports.Balances{}, nil
}

func (m *mockGateway) GetPositions(ctx context.Context, accountID string) ([]ports.PositionRaw, error) {
	if m.getPositions != nil {
		return m.getPositions()
	}
	return nil, nil
}

func (m *mockGateway) GetQuote(ctx context.Context, symbol string) (*ports.QuoteRaw, error) {
	quotes, err := m.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q := quotes[symbol]
	return &q, nil
}

func (m *mockGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]ports.QuoteRaw, error) {
	if m.getQuotes != nil {
		return m.getQuotes(symbols)
	}
	return map[string]ports.QuoteRaw{}, nil
}

func (m *mockGateway) GetOptionChain(ctx context.Context, symbol string, daysToExpiry int) ([]ports.OptionContract, error) {
	return nil, nil
}

func (m *mockGateway) SubmitOrder(ctx context.Context, accountID string, spec ports.OrderSpec) (*ports.OrderAck, error) {
	m.mu.Lock()
	m.submitCalls = append(m.submitCalls, spec)
	m.mu.Unlock()
	if m.submitOrder != nil {
		return m.submitOrder(spec)
	}
	return &ports.OrderAck{OrderID: "ORD-" + spec.ClientOrderID, Status: "ACCEPTED"}, nil
}

func (m *mockGateway) calls() []ports.OrderSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OrderSpec, len(m.submitCalls))
	copy(out, m.submitCalls)
	return out
}

func newTestMediator(t *testing.T, gw *mockGateway) *Mediator {
	t.Helper()
	m, err := New(Config{
		Gateway:    gw,
		Logger:     &mockLogger{},
		AccountID:  "ACC-1",
		RatePerSec: 1000, // keep tests fast
	})
	require.NoError(t, err)
	return m
}

func equityIntent(id, sym, tag string) domain.TradeIntent {
	return domain.TradeIntent{
		ID:              id,
		Symbol:          sym,
		Side:            domain.Buy,
		Quantity:        1,
		EstimatedPrice:  domain.USD(100),
		EstimatedAmount: domain.USD(100),
		AssetType:       domain.AssetEquity,
		StrategyTag:     tag,
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Gateway: &mockGateway{}, Logger: &mockLogger{}, AccountID: "A"}},
		{name: "nil gateway", cfg: Config{Logger: &mockLogger{}, AccountID: "A"}, wantErr: true},
		{name: "nil logger", cfg: Config{Gateway: &mockGateway{}, AccountID: "A"}, wantErr: true},
		{name: "empty account", cfg: Config{Gateway: &mockGateway{}, Logger: &mockLogger{}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMediator_DryRunNeverTouchesGateway(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	intents := []domain.TradeIntent{
		equityIntent("1", "SPY", "dca"),
		equityIntent("2", "QQQ", "dca"),
	}
	results, err := m.Execute(context.Background(), domain.ModeDryRun, intents)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.StatusPreviewed, r.Status)
		assert.Equal(t, "dry_run", r.ReasonCode)
		assert.Empty(t, r.BrokerOrderID)
	}
	assert.Empty(t, gw.calls())
}

func TestMediator_LiveSubmitsAllIntents(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	intents := []domain.TradeIntent{
		equityIntent("1", "SPY", "dca"),
		equityIntent("2", "QQQ", "dca"),
	}
	results, err := m.Execute(context.Background(), domain.ModeLive, intents)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.StatusSubmitted, r.Status)
		assert.NotEmpty(t, r.BrokerOrderID)
	}
	assert.Len(t, gw.calls(), 2)
}

func TestMediator_PartialFailureIsolation(t *testing.T) {
	gw := &mockGateway{
		submitOrder: func(spec ports.OrderSpec) (*ports.OrderAck, error) {
			if spec.Symbol == "QQQ" {
				return nil, fmt.Errorf("%w: not enough cash", ports.ErrInsufficientFunds)
			}
			return &ports.OrderAck{OrderID: "ORD-" + spec.ClientOrderID}, nil
		},
	}
	m := newTestMediator(t, gw)

	intents := []domain.TradeIntent{
		equityIntent("1", "SPY", "dca"),
		equityIntent("2", "QQQ", "dca"),
		equityIntent("3", "IWM", "dca"),
	}
	results, err := m.Execute(context.Background(), domain.ModeLive, intents)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, domain.StatusSubmitted, results[0].Status)
	assert.Equal(t, domain.StatusFailed, results[1].Status)
	assert.Equal(t, "insufficient_funds", results[1].ReasonCode)
	assert.Error(t, results[1].Err)
	// The failure did not stop the rest of the batch.
	assert.Equal(t, domain.StatusSubmitted, results[2].Status)
	assert.Len(t, gw.calls(), 3)
}

func TestMediator_CrossBatchDuplicateRejectsBatch(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	first := []domain.TradeIntent{equityIntent("1", "SPY", "dca")}
	_, err := m.Execute(context.Background(), domain.ModeLive, first)
	require.NoError(t, err)

	// Same (symbol, side, strategyTag) again: the whole batch is rejected
	// before anything is sent.
	second := []domain.TradeIntent{
		equityIntent("2", "SPY", "dca"),
		equityIntent("3", "QQQ", "dca"),
	}
	results, err := m.Execute(context.Background(), domain.ModeLive, second)
	require.ErrorIs(t, err, ports.ErrDuplicateSubmission)
	assert.Nil(t, results)
	assert.Len(t, gw.calls(), 1) // only the first batch reached the gateway
}

func TestMediator_WithinBatchDuplicateFailsIndividually(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	intents := []domain.TradeIntent{
		equityIntent("1", "SPY", "dca"),
		equityIntent("2", "SPY", "dca"), // duplicate triple, first wins
		equityIntent("3", "QQQ", "dca"),
	}
	results, err := m.Execute(context.Background(), domain.ModeLive, intents)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, domain.StatusSubmitted, results[0].Status)
	assert.Equal(t, domain.StatusFailed, results[1].Status)
	assert.Equal(t, "duplicate", results[1].ReasonCode)
	assert.Equal(t, domain.StatusSubmitted, results[2].Status)
	assert.Len(t, gw.calls(), 2)
}

func TestMediator_DryRunDoesNotArmDuplicateGuard(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	intents := []domain.TradeIntent{equityIntent("1", "SPY", "dca")}
	_, err := m.Execute(context.Background(), domain.ModeDryRun, intents)
	require.NoError(t, err)

	// A preview of the same intents must not block a later live run.
	results, err := m.Execute(context.Background(), domain.ModeLive, intents)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, results[0].Status)
}

func TestMediator_OptionIntentUsesContractSymbolAndLimit(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	intent := domain.TradeIntent{
		ID:              "1",
		Symbol:          "SPY",
		Side:            domain.SellToOpen,
		Quantity:        2,
		EstimatedPrice:  domain.USD(2.50),
		EstimatedAmount: domain.USD(500),
		AssetType:       domain.AssetOption,
		Option: &domain.OptionLeg{
			ContractSymbol: "SPY   250718C00105000",
			Strike:         domain.USD(105),
		},
		StrategyTag: "covered_calls",
	}
	_, err := m.Execute(context.Background(), domain.ModeLive, []domain.TradeIntent{intent})
	require.NoError(t, err)

	calls := gw.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SPY   250718C00105000", calls[0].Symbol)
	assert.Equal(t, 2.50, calls[0].LimitPrice)
	assert.Equal(t, int64(2), calls[0].Quantity)
}

func TestMediator_EmptyBatch(t *testing.T) {
	gw := &mockGateway{}
	m := newTestMediator(t, gw)

	results, err := m.Execute(context.Background(), domain.ModeLive, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, gw.calls())
}
