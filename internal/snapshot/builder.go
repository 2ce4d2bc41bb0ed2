// Package snapshot builds the immutable account view a strategy invocation
// runs against. Balances and positions failures are fatal for the whole
// invocation; no strategy can safely compute against a partial snapshot.
// A single malformed position record is dropped with a warning instead.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
	"stockpilot/internal/validate"
)

// Builder constructs AccountSnapshots from broker gateway responses.
type Builder struct {
	gateway ports.BrokerGateway
	logger  ports.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(gateway ports.BrokerGateway, logger ports.Logger) (*Builder, error) {
	if gateway == nil || logger == nil {
		return nil, fmt.Errorf("gateway and logger are required for snapshot builder")
	}
	return &Builder{gateway: gateway, logger: logger}, nil
}

// Build retrieves balances, positions and quotes for the account and
// assembles a snapshot. extraSymbols lists symbols a strategy wants quoted
// beyond current holdings (DCA targets, dip watchlists, rebalance targets).
func (b *Builder) Build(ctx context.Context, accountID string, extraSymbols []string) (*domain.AccountSnapshot, error) {
	balances, err := b.gateway.GetBalances(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: balances unobtainable: %v", ports.ErrGatewayUnavailable, err)
	}
	rawPositions, err := b.gateway.GetPositions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: positions unobtainable: %v", ports.ErrGatewayUnavailable, err)
	}

	var warnings []string
	held := make([]ports.PositionRaw, 0, len(rawPositions))
	for _, raw := range rawPositions {
		if raw.AssetType != "" && raw.AssetType != string(domain.AssetEquity) {
			continue
		}
		if _, err := validate.Symbol(raw.Symbol); err != nil {
			w := fmt.Sprintf("dropped position with malformed symbol %q", raw.Symbol)
			warnings = append(warnings, w)
			b.logger.Warn(ctx, "Dropping malformed position record", map[string]interface{}{
				"symbol": raw.Symbol,
			})
			continue
		}
		if raw.LongQuantity < 1 {
			continue
		}
		held = append(held, raw)
	}

	symbols := make([]string, 0, len(held)+len(extraSymbols))
	seen := make(map[string]struct{}, len(held)+len(extraSymbols))
	for _, p := range held {
		sym, _ := validate.Symbol(p.Symbol)
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			symbols = append(symbols, sym)
		}
	}
	for _, raw := range extraSymbols {
		sym, err := validate.Symbol(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped quote request for malformed symbol %q", raw))
			continue
		}
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	quotesRaw := map[string]ports.QuoteRaw{}
	if len(symbols) > 0 {
		quotesRaw, err = b.gateway.GetQuotes(ctx, symbols)
		if err != nil {
			return nil, fmt.Errorf("%w: quotes unobtainable: %v", ports.ErrGatewayUnavailable, err)
		}
	}

	quotes := make([]domain.Quote, 0, len(quotesRaw))
	for _, sym := range symbols {
		raw, ok := quotesRaw[sym]
		if !ok || raw.LastPrice <= 0 {
			warnings = append(warnings, fmt.Sprintf("no usable quote for %s, excluded from candidates", sym))
			continue
		}
		quotes = append(quotes, domain.Quote{
			Symbol:    sym,
			LastPrice: domain.USD(raw.LastPrice),
			OpenPrice: domain.USD(raw.OpenPrice),
			High52Wk:  domain.USD(raw.High52Wk),
		})
	}
	priced := make(map[string]domain.Quote, len(quotes))
	for _, q := range quotes {
		priced[q.Symbol] = q
	}

	positions := make([]domain.Position, 0, len(held))
	for _, raw := range held {
		sym, _ := validate.Symbol(raw.Symbol)
		q, ok := priced[sym]
		if !ok {
			// Held but unquotable: keep it out of candidate computation
			// entirely rather than divide by a zero price later.
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:      sym,
			Quantity:    int64(raw.LongQuantity),
			AverageCost: domain.USD(raw.AveragePrice),
			LastPrice:   q.LastPrice,
		})
	}

	snap := domain.NewAccountSnapshot(
		time.Now().UTC(),
		domain.USD(balances.LiquidationValue),
		domain.USD(balances.CashAvailableForTrading),
		domain.USD(balances.BuyingPower),
		positions,
		quotes,
		warnings,
	)
	b.logger.Debug(ctx, "Account snapshot built", map[string]interface{}{
		"positions": len(positions),
		"quotes":    len(quotes),
		"warnings":  len(warnings),
	})
	return snap, nil
}
