package strategy

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
	"stockpilot/internal/validate"
)

const (
	sharesPerContract = 100

	// strikeTolerance bounds how far a selected strike may sit from the OTM
	// target, as a fraction of the target.
	strikeTolerance = 0.10
)

// selectContract picks the contract of the given type with the nearest
// expiry at or beyond daysToExpiry, then the strike nearest the target
// within tolerance. useBid selects which quote side must be live (sellers
// need a bid, buyers an ask). Returns nil when nothing qualifies.
func selectContract(chain []ports.OptionContract, putCall string, target decimal.Decimal, daysToExpiry int, useBid bool) *ports.OptionContract {
	minDTE := -1
	for _, c := range chain {
		if c.PutCall != putCall || c.DaysToExpiry < daysToExpiry {
			continue
		}
		if minDTE == -1 || c.DaysToExpiry < minDTE {
			minDTE = c.DaysToExpiry
		}
	}
	if minDTE == -1 {
		return nil
	}

	var best *ports.OptionContract
	bestDiff := decimal.Zero
	maxDiff := target.Mul(decimal.NewFromFloat(strikeTolerance))
	for i := range chain {
		c := chain[i]
		if c.PutCall != putCall || c.DaysToExpiry != minDTE {
			continue
		}
		if useBid && c.Bid <= 0 {
			continue
		}
		if !useBid && c.Ask <= 0 {
			continue
		}
		diff := decimal.NewFromFloat(c.Strike).Sub(target).Abs()
		if diff.GreaterThan(maxDiff) {
			continue
		}
		if best == nil || diff.LessThan(bestDiff) {
			best = &chain[i]
			bestDiff = diff
		}
	}
	return best
}

func newOptionIntent(tag string, side domain.Side, underlying string, contracts int64, c *ports.OptionContract, premium decimal.Decimal, rationale string) domain.TradeIntent {
	amount := premium.Mul(decimal.NewFromInt(sharesPerContract)).Mul(decimal.NewFromInt(contracts))
	return domain.TradeIntent{
		ID:              uuid.NewString(),
		Symbol:          underlying,
		Side:            side,
		Quantity:        contracts,
		EstimatedPrice:  domain.Cents(premium),
		EstimatedAmount: domain.Cents(amount),
		AssetType:       domain.AssetOption,
		Option: &domain.OptionLeg{
			ContractSymbol: c.ContractSymbol,
			Strike:         domain.USD(c.Strike),
			Expiry:         c.Expiry,
		},
		StrategyTag: tag,
		Rationale:   rationale,
	}
}

// optionParams are the shared inputs of both option overlays.
type optionParams struct {
	filter       map[string]struct{} // nil means all positions
	daysToExpiry int
	otmPct       decimal.Decimal
	chains       map[string][]ports.OptionContract
}

func newOptionParams(symbols []string, daysToExpiry int, otmPercentage float64, chains map[string][]ports.OptionContract) (optionParams, error) {
	var p optionParams
	if len(symbols) > 0 {
		syms, err := validate.SymbolList(symbols, validate.MinSymbols, validate.MaxSymbols)
		if err != nil {
			return p, err
		}
		p.filter = make(map[string]struct{}, len(syms))
		for _, s := range syms {
			p.filter[s] = struct{}{}
		}
	}
	if daysToExpiry <= 0 {
		return p, &validate.ValidationError{Field: "daysToExpiry", Reason: "must be positive"}
	}
	otm, err := validate.Threshold("otmPercentage", otmPercentage, 0.0, 1.0)
	if err != nil {
		return p, err
	}
	if chains == nil {
		chains = map[string][]ports.OptionContract{}
	}
	p.daysToExpiry = daysToExpiry
	p.otmPct = decimal.NewFromFloat(otm)
	p.chains = chains
	return p, nil
}

func (p optionParams) wants(symbol string) bool {
	if p.filter == nil {
		return true
	}
	_, ok := p.filter[symbol]
	return ok
}

// CoveredCallWriter sells one call contract per 100 shares held, at the
// strike nearest lastPrice*(1+otm) on the nearest qualifying expiry.
type CoveredCallWriter struct {
	params optionParams
}

// NewCoveredCallWriter validates parameters. chains maps underlying symbol
// to its option chain, fetched by the caller for eligible positions.
func NewCoveredCallWriter(symbols []string, daysToExpiry int, otmPercentage float64, chains map[string][]ports.OptionContract) (*CoveredCallWriter, error) {
	p, err := newOptionParams(symbols, daysToExpiry, otmPercentage, chains)
	if err != nil {
		return nil, err
	}
	return &CoveredCallWriter{params: p}, nil
}

func (s *CoveredCallWriter) Name() string { return "covered_calls" }

// Plan skips positions under one full contract lot; fractional lots never
// round up past owned shares.
func (s *CoveredCallWriter) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	var intents []domain.TradeIntent
	for _, pos := range snap.Positions() {
		if !s.params.wants(pos.Symbol) || pos.Quantity < sharesPerContract {
			continue
		}
		contracts := pos.Quantity / sharesPerContract
		target := pos.LastPrice.Mul(decimal.NewFromInt(1).Add(s.params.otmPct))
		contract := selectContract(s.params.chains[pos.Symbol], "CALL", target, s.params.daysToExpiry, true)
		if contract == nil {
			continue
		}
		premium := domain.USD(contract.Bid)
		rationale := fmt.Sprintf("write %d call(s) at strike %s (%s%% OTM target), %dd expiry",
			contracts, domain.USD(contract.Strike),
			s.params.otmPct.Mul(decimal.NewFromInt(100)).Round(2), contract.DaysToExpiry)
		intents = append(intents, newOptionIntent(s.Name(), domain.SellToOpen, pos.Symbol, contracts, contract, premium, rationale))
	}
	return intents
}

// ProtectivePutBuyer buys one put contract per 100 shares held, at the
// strike nearest lastPrice*(1-otm) on the nearest qualifying expiry.
type ProtectivePutBuyer struct {
	params optionParams
}

// NewProtectivePutBuyer validates parameters; see NewCoveredCallWriter.
func NewProtectivePutBuyer(symbols []string, daysToExpiry int, otmPercentage float64, chains map[string][]ports.OptionContract) (*ProtectivePutBuyer, error) {
	p, err := newOptionParams(symbols, daysToExpiry, otmPercentage, chains)
	if err != nil {
		return nil, err
	}
	return &ProtectivePutBuyer{params: p}, nil
}

func (s *ProtectivePutBuyer) Name() string { return "protective_puts" }

func (s *ProtectivePutBuyer) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	var intents []domain.TradeIntent
	for _, pos := range snap.Positions() {
		if !s.params.wants(pos.Symbol) || pos.Quantity < sharesPerContract {
			continue
		}
		contracts := pos.Quantity / sharesPerContract
		target := pos.LastPrice.Mul(decimal.NewFromInt(1).Sub(s.params.otmPct))
		contract := selectContract(s.params.chains[pos.Symbol], "PUT", target, s.params.daysToExpiry, false)
		if contract == nil {
			continue
		}
		premium := domain.USD(contract.Ask)
		rationale := fmt.Sprintf("protect %d lot(s) at strike %s (%s%% OTM target), %dd expiry",
			contracts, domain.USD(contract.Strike),
			s.params.otmPct.Mul(decimal.NewFromInt(100)).Round(2), contract.DaysToExpiry)
		intents = append(intents, newOptionIntent(s.Name(), domain.BuyToOpen, pos.Symbol, contracts, contract, premium, rationale))
	}
	return intents
}
