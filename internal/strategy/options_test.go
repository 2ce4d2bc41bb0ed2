package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

func call(strike float64, dte int, bid, ask float64) ports.OptionContract {
	return contract("CALL", strike, dte, bid, ask)
}

func put(strike float64, dte int, bid, ask float64) ports.OptionContract {
	return contract("PUT", strike, dte, bid, ask)
}

func contract(putCall string, strike float64, dte int, bid, ask float64) ports.OptionContract {
	return ports.OptionContract{
		ContractSymbol: "SPY_TEST",
		Underlying:     "SPY",
		PutCall:        putCall,
		Strike:         strike,
		Expiry:         time.Now().AddDate(0, 0, dte),
		DaysToExpiry:   dte,
		Bid:            bid,
		Ask:            ask,
	}
}

func TestSelectContract(t *testing.T) {
	target := domain.USD(105)

	t.Run("picks nearest expiry then nearest strike", func(t *testing.T) {
		chain := []ports.OptionContract{
			call(105, 60, 3.0, 3.1), // farther expiry, ignored
			call(110, 35, 2.0, 2.1),
			call(105, 35, 2.5, 2.6), // nearest strike on nearest expiry
		}
		got := selectContract(chain, "CALL", target, 30, true)
		require.NotNil(t, got)
		assert.Equal(t, 105.0, got.Strike)
		assert.Equal(t, 35, got.DaysToExpiry)
	})

	t.Run("expiries before the minimum are ignored", func(t *testing.T) {
		chain := []ports.OptionContract{call(105, 10, 2.5, 2.6)}
		assert.Nil(t, selectContract(chain, "CALL", target, 30, true))
	})

	t.Run("strike outside tolerance is rejected", func(t *testing.T) {
		// ±10% of a 105 target allows [94.5, 115.5].
		chain := []ports.OptionContract{call(120, 35, 2.5, 2.6)}
		assert.Nil(t, selectContract(chain, "CALL", target, 30, true))
	})

	t.Run("seller needs a live bid", func(t *testing.T) {
		chain := []ports.OptionContract{call(105, 35, 0, 2.6)}
		assert.Nil(t, selectContract(chain, "CALL", target, 30, true))
	})

	t.Run("buyer needs a live ask", func(t *testing.T) {
		chain := []ports.OptionContract{put(95, 35, 1.5, 0)}
		assert.Nil(t, selectContract(chain, "PUT", domain.USD(95), 30, false))
	})

	t.Run("wrong contract type is ignored", func(t *testing.T) {
		chain := []ports.OptionContract{put(105, 35, 2.5, 2.6)}
		assert.Nil(t, selectContract(chain, "CALL", target, 30, true))
	})

	t.Run("empty chain", func(t *testing.T) {
		assert.Nil(t, selectContract(nil, "CALL", target, 30, true))
	})
}

func TestCoveredCallWriter_Plan(t *testing.T) {
	newWriter := func(chains map[string][]ports.OptionContract) *CoveredCallWriter {
		s, err := NewCoveredCallWriter(nil, 30, 0.05, chains)
		require.NoError(t, err)
		return s
	}

	t.Run("writes one contract per full lot", func(t *testing.T) {
		chains := map[string][]ports.OptionContract{
			"SPY": {call(105, 35, 2.50, 2.60)},
		}
		s := newWriter(chains)

		snap := newTestSnapshot(0, []domain.Position{position("SPY", 250, 100.00)}, nil)
		intents := s.Plan(snap)
		require.Len(t, intents, 1)

		i := intents[0]
		assert.Equal(t, domain.SellToOpen, i.Side)
		assert.Equal(t, domain.AssetOption, i.AssetType)
		assert.Equal(t, int64(2), i.Quantity) // 250 shares -> 2 contracts
		assert.Equal(t, "2.5", i.EstimatedPrice.String())
		assert.Equal(t, "500", i.EstimatedAmount.String()) // 2.50 * 100 * 2
		require.NotNil(t, i.Option)
		assert.Equal(t, "SPY_TEST", i.Option.ContractSymbol)
		assert.Equal(t, "covered_calls", i.StrategyTag)
	})

	t.Run("positions under one lot are skipped", func(t *testing.T) {
		chains := map[string][]ports.OptionContract{
			"SPY": {call(105, 35, 2.50, 2.60)},
		}
		s := newWriter(chains)
		snap := newTestSnapshot(0, []domain.Position{position("SPY", 99, 100.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})

	t.Run("missing chain is skipped", func(t *testing.T) {
		s := newWriter(nil)
		snap := newTestSnapshot(0, []domain.Position{position("SPY", 200, 100.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})

	t.Run("symbol filter restricts underlyings", func(t *testing.T) {
		chains := map[string][]ports.OptionContract{
			"SPY": {call(105, 35, 2.50, 2.60)},
		}
		s, err := NewCoveredCallWriter([]string{"QQQ"}, 30, 0.05, chains)
		require.NoError(t, err)
		snap := newTestSnapshot(0, []domain.Position{position("SPY", 200, 100.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})
}

func TestNewCoveredCallWriter_Validation(t *testing.T) {
	_, err := NewCoveredCallWriter(nil, 0, 0.05, nil)
	require.Error(t, err)

	_, err = NewCoveredCallWriter(nil, 30, -0.05, nil)
	require.Error(t, err)

	_, err = NewCoveredCallWriter([]string{"bad!"}, 30, 0.05, nil)
	require.Error(t, err)
}

func TestProtectivePutBuyer_Plan(t *testing.T) {
	t.Run("buys one put per full lot at the OTM target", func(t *testing.T) {
		chains := map[string][]ports.OptionContract{
			"SPY": {put(95, 35, 1.70, 1.80)},
		}
		s, err := NewProtectivePutBuyer(nil, 30, 0.05, chains)
		require.NoError(t, err)

		snap := newTestSnapshot(0, []domain.Position{position("SPY", 200, 100.00)}, nil)
		intents := s.Plan(snap)
		require.Len(t, intents, 1)

		i := intents[0]
		assert.Equal(t, domain.BuyToOpen, i.Side)
		assert.Equal(t, int64(2), i.Quantity)
		assert.Equal(t, "1.8", i.EstimatedPrice.String())   // priced at the ask
		assert.Equal(t, "360", i.EstimatedAmount.String()) // 1.80 * 100 * 2
		assert.Equal(t, "protective_puts", i.StrategyTag)
	})

	t.Run("no qualifying put is a no-op", func(t *testing.T) {
		chains := map[string][]ports.OptionContract{
			"SPY": {put(50, 35, 1.70, 1.80)}, // far outside strike tolerance
		}
		s, err := NewProtectivePutBuyer(nil, 30, 0.05, chains)
		require.NoError(t, err)

		snap := newTestSnapshot(0, []domain.Position{position("SPY", 200, 100.00)}, nil)
		assert.Empty(t, s.Plan(snap))
	})
}
