package schwabclient

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// --- API payload types ---

type accountEnvelope struct {
	SecuritiesAccount struct {
		AccountNumber   string `json:"accountNumber"`
		CurrentBalances struct {
			LiquidationValue        float64 `json:"liquidationValue"`
			CashAvailableForTrading float64 `json:"cashAvailableForTrading"`
			BuyingPower             float64 `json:"buyingPower"`
		} `json:"currentBalances"`
		Positions []struct {
			Instrument struct {
				Symbol    string `json:"symbol"`
				AssetType string `json:"assetType"`
			} `json:"instrument"`
			LongQuantity float64 `json:"longQuantity"`
			AveragePrice float64 `json:"averagePrice"`
			MarketValue  float64 `json:"marketValue"`
		} `json:"positions"`
	} `json:"securitiesAccount"`
}

type quoteEnvelope struct {
	Quote struct {
		LastPrice float64 `json:"lastPrice"`
		OpenPrice float64 `json:"openPrice"`
		High52Wk  float64 `json:"52WeekHigh"`
	} `json:"quote"`
}

type chainContract struct {
	Symbol           string  `json:"symbol"`
	PutCall          string  `json:"putCall"`
	StrikePrice      float64 `json:"strikePrice"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	DaysToExpiration int     `json:"daysToExpiration"`
	ExpirationDate   string  `json:"expirationDate"`
}

type chainEnvelope struct {
	Symbol         string                       `json:"symbol"`
	CallExpDateMap map[string]map[string][]chainContract `json:"callExpDateMap"`
	PutExpDateMap  map[string]map[string][]chainContract `json:"putExpDateMap"`
}

type orderLeg struct {
	Instruction string `json:"instruction"`
	Quantity    int64  `json:"quantity"`
	Instrument  struct {
		Symbol    string `json:"symbol"`
		AssetType string `json:"assetType"`
	} `json:"instrument"`
}

type orderPayload struct {
	OrderType         string     `json:"orderType"`
	Session           string     `json:"session"`
	Duration          string     `json:"duration"`
	OrderStrategyType string     `json:"orderStrategyType"`
	Price             string     `json:"price,omitempty"`
	OrderLegs         []orderLeg `json:"orderLegCollection"`
}

// --- BrokerGateway implementation ---

// GetBalances retrieves current balances for an account.
func (c *Client) GetBalances(ctx context.Context, accountID string) (*ports.Balances, error) {
	op := "GetBalances"
	var env accountEnvelope
	if err := c.getJSON(ctx, op, traderPath+"/accounts/"+url.PathEscape(accountID), nil, &env); err != nil {
		return nil, err
	}
	b := env.SecuritiesAccount.CurrentBalances
	return &ports.Balances{
		LiquidationValue:        b.LiquidationValue,
		CashAvailableForTrading: b.CashAvailableForTrading,
		BuyingPower:             b.BuyingPower,
	}, nil
}

// GetPositions retrieves current positions for an account.
func (c *Client) GetPositions(ctx context.Context, accountID string) ([]ports.PositionRaw, error) {
	op := "GetPositions"
	query := url.Values{"fields": []string{"positions"}}
	var env accountEnvelope
	if err := c.getJSON(ctx, op, traderPath+"/accounts/"+url.PathEscape(accountID), query, &env); err != nil {
		return nil, err
	}
	positions := make([]ports.PositionRaw, 0, len(env.SecuritiesAccount.Positions))
	for _, p := range env.SecuritiesAccount.Positions {
		positions = append(positions, ports.PositionRaw{
			Symbol:       p.Instrument.Symbol,
			AssetType:    p.Instrument.AssetType,
			LongQuantity: p.LongQuantity,
			AveragePrice: p.AveragePrice,
			MarketValue:  p.MarketValue,
		})
	}
	return positions, nil
}

// GetQuote retrieves market data for a single symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*ports.QuoteRaw, error) {
	quotes, err := c.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("GetQuote failed: %w: no quote returned for %s", ports.ErrNotFound, symbol)
	}
	return &q, nil
}

// GetQuotes retrieves market data for multiple symbols in one call.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]ports.QuoteRaw, error) {
	op := "GetQuotes"
	if len(symbols) == 0 {
		return map[string]ports.QuoteRaw{}, nil
	}
	query := url.Values{
		"symbols": []string{strings.Join(symbols, ",")},
		"fields":  []string{"quote"},
	}
	envs := map[string]quoteEnvelope{}
	if err := c.getJSON(ctx, op, marketDataPath+"/quotes", query, &envs); err != nil {
		return nil, err
	}
	quotes := make(map[string]ports.QuoteRaw, len(envs))
	for sym, env := range envs {
		quotes[sym] = ports.QuoteRaw{
			Symbol:    sym,
			LastPrice: env.Quote.LastPrice,
			OpenPrice: env.Quote.OpenPrice,
			High52Wk:  env.Quote.High52Wk,
		}
	}
	return quotes, nil
}

// GetOptionChain retrieves the option chain for a symbol, windowed from today
// out to twice the requested days-to-expiry.
func (c *Client) GetOptionChain(ctx context.Context, symbol string, daysToExpiry int) ([]ports.OptionContract, error) {
	op := "GetOptionChain"
	now := time.Now()
	query := url.Values{
		"symbol":       []string{symbol},
		"contractType": []string{"ALL"},
		"fromDate":     []string{now.Format("2006-01-02")},
		"toDate":       []string{now.AddDate(0, 0, 2*daysToExpiry).Format("2006-01-02")},
	}
	var env chainEnvelope
	if err := c.getJSON(ctx, op, marketDataPath+"/chains", query, &env); err != nil {
		return nil, err
	}

	var contracts []ports.OptionContract
	collect := func(expMap map[string]map[string][]chainContract) {
		for _, strikes := range expMap {
			for _, legs := range strikes {
				for _, leg := range legs {
					contracts = append(contracts, translateContract(symbol, leg))
				}
			}
		}
	}
	collect(env.CallExpDateMap)
	collect(env.PutExpDateMap)

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "contracts": len(contracts)})
	return contracts, nil
}

// SubmitOrder submits one order and returns the broker's acknowledgement. The
// order ID comes from the Location header of the 201 response.
func (c *Client) SubmitOrder(ctx context.Context, accountID string, spec ports.OrderSpec) (*ports.OrderAck, error) {
	op := "SubmitOrder"

	payload, err := buildOrderPayload(spec)
	if err != nil {
		return nil, c.handleError(ctx, err, op, 0)
	}

	resp, err := c.do(ctx, op, "POST", traderPath+"/accounts/"+url.PathEscape(accountID)+"/orders", nil, payload)
	if err != nil {
		return nil, err
	}

	orderID := path.Base(resp.location)
	if orderID == "" || orderID == "." || orderID == "/" {
		return nil, c.handleError(ctx, fmt.Errorf("%w: no order ID in response Location header", ports.ErrOrderPlacementFailed), op, 0)
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   spec.Symbol,
		"side":     spec.Side,
		"quantity": spec.Quantity,
		"orderID":  orderID,
	})
	return &ports.OrderAck{OrderID: orderID, Status: "ACCEPTED"}, nil
}

// --- Translation helpers ---

func translateContract(underlying string, leg chainContract) ports.OptionContract {
	expiry, err := time.Parse("2006-01-02", leg.ExpirationDate)
	if err != nil {
		// Some payloads carry full timestamps.
		expiry, _ = time.Parse(time.RFC3339, leg.ExpirationDate)
	}
	return ports.OptionContract{
		ContractSymbol: leg.Symbol,
		Underlying:     underlying,
		PutCall:        strings.ToUpper(leg.PutCall),
		Strike:         leg.StrikePrice,
		Expiry:         expiry,
		DaysToExpiry:   leg.DaysToExpiration,
		Bid:            leg.Bid,
		Ask:            leg.Ask,
	}
}

func buildOrderPayload(spec ports.OrderSpec) (*orderPayload, error) {
	var instruction string
	switch spec.Side {
	case domain.Buy:
		instruction = "BUY"
	case domain.Sell:
		instruction = "SELL"
	case domain.SellToOpen:
		instruction = "SELL_TO_OPEN"
	case domain.BuyToOpen:
		instruction = "BUY_TO_OPEN"
	default:
		return nil, fmt.Errorf("unsupported order side %q", spec.Side)
	}

	assetType := "EQUITY"
	if spec.AssetType == domain.AssetOption {
		assetType = "OPTION"
	}

	p := &orderPayload{
		OrderType:         "MARKET",
		Session:           "NORMAL",
		Duration:          "DAY",
		OrderStrategyType: "SINGLE",
	}
	if spec.LimitPrice > 0 {
		p.OrderType = "LIMIT"
		p.Price = strconv.FormatFloat(spec.LimitPrice, 'f', 2, 64)
	}

	leg := orderLeg{Instruction: instruction, Quantity: spec.Quantity}
	leg.Instrument.Symbol = spec.Symbol
	leg.Instrument.AssetType = assetType
	p.OrderLegs = []orderLeg{leg}
	return p, nil
}
