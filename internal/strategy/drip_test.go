package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
)

func TestNewDividendReinvestment(t *testing.T) {
	t.Run("zero cash defers to snapshot", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)
		assert.Equal(t, "drip", s.Name())
	})
	t.Run("negative cash is rejected", func(t *testing.T) {
		_, err := NewDividendReinvestment(-5)
		require.Error(t, err)
	})
	t.Run("explicit cash validated", func(t *testing.T) {
		_, err := NewDividendReinvestment(2_000_000)
		require.Error(t, err)
	})
}

func TestDividendReinvestment_Plan(t *testing.T) {
	t.Run("allocates proportionally by market value", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)

		// SPY 75% of portfolio, QQQ 25%.
		snap := newTestSnapshot(1000, []domain.Position{
			position("SPY", 75, 10.00), // $750
			position("QQQ", 25, 10.00), // $250
		}, nil)

		intents := s.Plan(snap)
		require.Len(t, intents, 2)
		assert.Equal(t, "SPY", intents[0].Symbol)
		assert.Equal(t, int64(75), intents[0].Quantity) // $750 slice / $10
		assert.Equal(t, "QQQ", intents[1].Symbol)
		assert.Equal(t, int64(25), intents[1].Quantity)
		assert.True(t, sumEstimated(intents).LessThanOrEqual(domain.USD(1000)))
	})

	t.Run("cash below reinvest floor is a no-op", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)

		snap := newTestSnapshot(9.99, []domain.Position{position("SPY", 10, 100.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})

	t.Run("slice below minimum is skipped", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)

		// QQQ's weight is 1%, so its slice of $100 is $1, under the $5 floor.
		snap := newTestSnapshot(100, []domain.Position{
			position("SPY", 99, 10.00),
			position("QQQ", 1, 10.00),
		}, nil)
		intents := s.Plan(snap)
		require.Len(t, intents, 1)
		assert.Equal(t, "SPY", intents[0].Symbol)
	})

	t.Run("no positions is a no-op", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)
		assert.Empty(t, s.Plan(newTestSnapshot(5000, nil, nil)))
	})

	t.Run("cash override replaces snapshot cash", func(t *testing.T) {
		s, err := NewDividendReinvestment(200)
		require.NoError(t, err)

		// Snapshot cash is zero; the override funds the run.
		snap := newTestSnapshot(0, []domain.Position{position("SPY", 10, 10.00)}, nil)
		intents := s.Plan(snap)
		require.Len(t, intents, 1)
		assert.Equal(t, int64(20), intents[0].Quantity) // full $200 at weight 1.0
	})

	t.Run("slice buying zero shares is skipped", func(t *testing.T) {
		s, err := NewDividendReinvestment(0)
		require.NoError(t, err)

		// Slice is ~$20 but the share price is $500.
		snap := newTestSnapshot(20, []domain.Position{position("SPY", 1, 500.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})
}
