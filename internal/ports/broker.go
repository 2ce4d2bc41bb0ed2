package ports

import (
	"context"
	"time"

	"stockpilot/internal/domain"
)

// Balances is the raw balances payload for one account.
type Balances struct {
	LiquidationValue        float64
	CashAvailableForTrading float64
	BuyingPower             float64
	MarketValue             float64
}

// PositionRaw is one position as returned by the broker, before validation.
type PositionRaw struct {
	Symbol       string
	AssetType    string // e.g. "EQUITY", "OPTION"
	LongQuantity float64
	AveragePrice float64
	MarketValue  float64
}

// QuoteRaw is market data for one symbol as returned by the broker.
type QuoteRaw struct {
	Symbol    string
	LastPrice float64
	OpenPrice float64
	High52Wk  float64
}

// OptionContract is one contract from an option chain.
type OptionContract struct {
	ContractSymbol string
	Underlying     string
	PutCall        string // "CALL" or "PUT"
	Strike         float64
	Expiry         time.Time
	DaysToExpiry   int
	Bid            float64
	Ask            float64
}

// OrderSpec describes a market order to submit. LimitPrice is used only for
// option legs priced at the quoted bid/ask.
type OrderSpec struct {
	Symbol        string // contract symbol for options, ticker for equities
	AssetType     domain.AssetType
	Side          domain.Side
	Quantity      int64
	LimitPrice    float64 // 0 means market
	ClientOrderID string
}

// OrderAck is the broker's acknowledgement of a submitted order.
type OrderAck struct {
	OrderID string
	Status  string
}

// BrokerGateway defines the interface for interacting with a brokerage.
// Any call may fail. The engine never assumes credential freshness;
// token refresh is the gateway implementation's concern.
type BrokerGateway interface {
	// GetBalances retrieves current balances for an account.
	GetBalances(ctx context.Context, accountID string) (*Balances, error)

	// GetPositions retrieves current positions for an account.
	GetPositions(ctx context.Context, accountID string) ([]PositionRaw, error)

	// GetQuote retrieves market data for a single symbol.
	GetQuote(ctx context.Context, symbol string) (*QuoteRaw, error)

	// GetQuotes retrieves market data for multiple symbols in one call.
	GetQuotes(ctx context.Context, symbols []string) (map[string]QuoteRaw, error)

	// GetOptionChain retrieves the option chain for a symbol, filtered to
	// expiries at or beyond the given days-to-expiry.
	GetOptionChain(ctx context.Context, symbol string, daysToExpiry int) ([]OptionContract, error)

	// SubmitOrder submits one order and returns the broker's acknowledgement.
	SubmitOrder(ctx context.Context, accountID string, spec OrderSpec) (*OrderAck, error)
}
