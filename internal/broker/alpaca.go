package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// Compile-time interface check.
var _ Gateway = (*AlpacaGateway)(nil)

// AlpacaGateway implements Gateway against the Alpaca trading and
// market-data APIs. The SDK speaks decimal, the engine speaks int64 shares
// and float64 prices; the conversion happens here and nowhere else.
type AlpacaGateway struct {
	trading *alpaca.Client
	data    *marketdata.Client
}

// NewAlpacaGateway creates an AlpacaGateway configured with the given
// credentials and API endpoints. dataURL may be empty to use the SDK
// default.
func NewAlpacaGateway(apiKey, apiSecret, baseURL, dataURL string) *AlpacaGateway {
	dataOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		dataOpts.BaseURL = dataURL
	}

	return &AlpacaGateway{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		data: marketdata.NewClient(dataOpts),
	}
}

// Name returns "alpaca".
func (g *AlpacaGateway) Name() string { return "alpaca" }

// Place submits a day limit order.
func (g *AlpacaGateway) Place(_ context.Context, side domain.Side, symbol string, qty int64, price float64) (*domain.OrderAck, error) {
	q := decimal.NewFromInt(qty)
	lp := decimal.NewFromFloat(price)

	ordSide := alpaca.Buy
	if side == domain.SideSell {
		ordSide = alpaca.Sell
	}

	order, err := g.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &q,
		Side:        ordSide,
		Type:        alpaca.Limit,
		TimeInForce: alpaca.Day,
		LimitPrice:  &lp,
	})
	if err != nil {
		return nil, fmt.Errorf("placing %s order for %s: %w", side, symbol, err)
	}

	return &domain.OrderAck{OrderID: order.ID, Message: string(order.Status)}, nil
}

// Cancel requests cancellation of an open order. The symbol is unused by
// Alpaca, which cancels by order id alone.
func (g *AlpacaGateway) Cancel(_ context.Context, orderID, _ string) error {
	if err := g.trading.CancelOrder(orderID); err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	return nil
}

// ListOpenOrders returns all currently open (amendable) orders.
func (g *AlpacaGateway) ListOpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	orders, err := g.trading.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Limit:  500,
	})
	if err != nil {
		return nil, fmt.Errorf("listing open orders: %w", err)
	}

	rows := make([]domain.OpenOrder, 0, len(orders))
	for _, o := range orders {
		qty := decPtrInt(o.Qty)
		filled := o.FilledQty.IntPart()
		rows = append(rows, domain.OpenOrder{
			OrderID:      o.ID,
			Symbol:       o.Symbol,
			Qty:          qty,
			RemainingQty: qty - filled,
		})
	}
	return rows, nil
}

// ListRecentExecutions returns settled orders within the window. Cancelled
// orders appear with the Cancelled marker so classification can tell a
// confirmed cancel apart from a zero-quantity settlement record.
func (g *AlpacaGateway) ListRecentExecutions(_ context.Context, window time.Duration) ([]domain.Execution, error) {
	orders, err := g.trading.GetOrders(alpaca.GetOrdersRequest{
		Status: "closed",
		After:  time.Now().Add(-window),
		Limit:  500,
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent executions: %w", err)
	}

	rows := make([]domain.Execution, 0, len(orders))
	for _, o := range orders {
		status := strings.ToLower(string(o.Status))
		rows = append(rows, domain.Execution{
			OrderID:     o.ID,
			Symbol:      o.Symbol,
			ExecutedQty: o.FilledQty.IntPart(),
			OrderQty:    decPtrInt(o.Qty),
			Cancelled:   status == "canceled" || status == "expired",
		})
	}
	return rows, nil
}

// GetQuote returns the latest trade price for a symbol.
func (g *AlpacaGateway) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	trade, err := g.data.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetching latest trade for %s: %w", symbol, err)
	}
	return &domain.Quote{
		Symbol: symbol,
		Price:  trade.Price,
		Time:   trade.Timestamp,
	}, nil
}

// GetAccount returns cash, equity, and holdings.
func (g *AlpacaGateway) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	acct, err := g.trading.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	positions, err := g.trading.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	info := &domain.AccountInfo{
		Cash:       acct.Cash.InexactFloat64(),
		TotalValue: acct.Equity.InexactFloat64(),
		Holdings:   make([]domain.Holding, 0, len(positions)),
	}
	for _, p := range positions {
		info.Holdings = append(info.Holdings, domain.Holding{
			Symbol:          p.Symbol,
			Name:            p.Symbol,
			Qty:             p.Qty.IntPart(),
			AvgPrice:        p.AvgEntryPrice.InexactFloat64(),
			LastPrice:       decPtrFloat(p.CurrentPrice),
			UnrealizedPL:    decPtrFloat(p.UnrealizedPL),
			UnrealizedPLPct: decPtrFloat(p.UnrealizedPLPC) * 100,
		})
	}
	return info, nil
}

func decPtrInt(d *decimal.Decimal) int64 {
	if d == nil {
		return 0
	}
	return d.IntPart()
}

func decPtrFloat(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}
