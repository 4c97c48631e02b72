package httpapi

import (
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// View structs decouple the wire format from the domain structs so internal
// field changes never silently change the API.

type positionView struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name,omitempty"`
	Qty             int64   `json:"qty"`
	AvgPrice        float64 `json:"avg_price"`
	LastPrice       float64 `json:"last_price"`
	PriceStale      bool    `json:"price_stale,omitempty"`
	UnrealizedPL    float64 `json:"unrealized_pl"`
	UnrealizedPLPct float64 `json:"unrealized_pl_pct"`
	MarketValue     float64 `json:"market_value"`
	Status          string  `json:"status"`
	OpenedAt        string  `json:"opened_at"`
	StopLoss        float64 `json:"stop_loss,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"`
	EntryReason     string  `json:"entry_reason,omitempty"`
	Pattern         string  `json:"pattern,omitempty"`
}

func newPositionView(p *domain.Position) positionView {
	return positionView{
		Symbol:          p.Symbol,
		Name:            p.Name,
		Qty:             p.Qty,
		AvgPrice:        p.AvgPrice,
		LastPrice:       p.LastPrice,
		PriceStale:      p.PriceStale,
		UnrealizedPL:    p.UnrealizedPL,
		UnrealizedPLPct: p.UnrealizedPLPct,
		MarketValue:     p.MarketValue(),
		Status:          string(p.Status),
		OpenedAt:        p.OpenedAt.Format(time.RFC3339),
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		EntryReason:     p.EntryReason,
		Pattern:         p.Pattern,
	}
}

type positionsResponse struct {
	Count     int            `json:"count"`
	Positions []positionView `json:"positions"`
}

type orderView struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name,omitempty"`
	Side         string  `json:"side"`
	Qty          int64   `json:"qty"`
	LimitPrice   float64 `json:"limit_price"`
	FilledQty    int64   `json:"filled_qty"`
	RemainingQty int64   `json:"remaining_qty"`
	Status       string  `json:"status"`
	SubmittedAt  string  `json:"submitted_at"`
	CancelReason string  `json:"cancel_reason,omitempty"`
}

func newOrderView(o *domain.PendingOrder) orderView {
	return orderView{
		OrderID:      o.OrderID,
		Symbol:       o.Symbol,
		Name:         o.Name,
		Side:         string(o.Side),
		Qty:          o.Qty,
		LimitPrice:   o.LimitPrice,
		FilledQty:    o.FilledQty,
		RemainingQty: o.RemainingQty,
		Status:       string(o.Status),
		SubmittedAt:  o.SubmittedAt.Format(time.RFC3339),
		CancelReason: o.CancelReason,
	}
}

type ordersResponse struct {
	Count  int         `json:"count"`
	Orders []orderView `json:"orders"`
}

type tradeView struct {
	Timestamp  string  `json:"timestamp"`
	Side       string  `json:"side"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Qty        int64   `json:"qty"`
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason,omitempty"`
	OrderID    string  `json:"order_id"`
	RealizedPL float64 `json:"realized_pl"`
}

func newTradeView(r *domain.TradeRecord) tradeView {
	return tradeView{
		Timestamp:  r.Timestamp.Format(time.RFC3339),
		Side:       string(r.Side),
		Symbol:     r.Symbol,
		Name:       r.Name,
		Qty:        r.Qty,
		Price:      r.Price,
		Amount:     r.Amount,
		Reason:     r.Reason,
		OrderID:    r.OrderID,
		RealizedPL: r.RealizedPL,
	}
}

type tradesResponse struct {
	Count  int         `json:"count"`
	Trades []tradeView `json:"trades"`
}
