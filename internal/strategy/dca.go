package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/validate"
)

// DollarCostAveraging splits a fixed total evenly across a symbol list and
// buys whole shares of each at the last price.
type DollarCostAveraging struct {
	symbols []string
	total   decimal.Decimal
}

// NewDollarCostAveraging validates the symbol list and total amount.
func NewDollarCostAveraging(symbols []string, totalAmount float64) (*DollarCostAveraging, error) {
	syms, err := validate.SymbolList(symbols, validate.MinSymbols, validate.MaxSymbols)
	if err != nil {
		return nil, err
	}
	total, err := validate.Amount("totalAmount", totalAmount, validate.MinAmount, validate.MaxAmount)
	if err != nil {
		return nil, err
	}
	return &DollarCostAveraging{symbols: syms, total: total}, nil
}

func (s *DollarCostAveraging) Name() string { return "dca" }

// Plan emits one BUY per symbol whose per-symbol slice covers at least one
// whole share. The per-symbol slice is total/count; flooring to whole shares
// means the summed estimates never exceed the total.
func (s *DollarCostAveraging) Plan(snap *domain.AccountSnapshot) []domain.TradeIntent {
	perSymbol := s.total.Div(decimal.NewFromInt(int64(len(s.symbols))))

	var intents []domain.TradeIntent
	for _, sym := range s.symbols {
		quote, ok := snap.Quote(sym)
		if !ok || !quote.HasPrice() {
			continue
		}
		shares := wholeShares(perSymbol, quote.LastPrice)
		if shares == 0 {
			continue
		}
		rationale := fmt.Sprintf("DCA slice $%s of $%s across %d symbols",
			domain.Cents(perSymbol), s.total, len(s.symbols))
		intents = append(intents, newEquityIntent(s.Name(), sym, domain.Buy, shares, quote.LastPrice, rationale))
	}
	return intents
}
