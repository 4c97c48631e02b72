package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// Compile-time interface check.
var _ Gateway = (*SimulatorGateway)(nil)

// SimulatorGateway implements Gateway in memory for paper trading and tests.
// Orders rest on the open list until filled or cancelled; fills are applied
// either automatically in full (AutoFill) or explicitly via Fill, so the
// reconciliation loop discovers them through the same two views it uses
// against a real broker.
type SimulatorGateway struct {
	mu sync.Mutex

	cash     float64
	holdings map[string]*domain.Holding
	prices   map[string]float64

	open  map[string]*simOrder
	execs []domain.Execution

	// AutoFill fills every order in full at its limit price immediately on
	// placement.
	AutoFill bool
}

type simOrder struct {
	orderID string
	symbol  string
	side    domain.Side
	qty     int64
	filled  int64
	price   float64
	placed  time.Time
}

// NewSimulatorGateway creates a simulator seeded with the given cash.
func NewSimulatorGateway(cash float64) *SimulatorGateway {
	return &SimulatorGateway{
		cash:     cash,
		holdings: make(map[string]*domain.Holding),
		prices:   make(map[string]float64),
		open:     make(map[string]*simOrder),
	}
}

// Name returns "simulator".
func (g *SimulatorGateway) Name() string { return "simulator" }

// SetPrice sets the simulated market price for a symbol.
func (g *SimulatorGateway) SetPrice(symbol string, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[symbol] = price
	if h, ok := g.holdings[symbol]; ok {
		h.LastPrice = price
	}
}

// Place records the order on the open list.
func (g *SimulatorGateway) Place(_ context.Context, side domain.Side, symbol string, qty int64, price float64) (*domain.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	o := &simOrder{
		orderID: uuid.NewString(),
		symbol:  symbol,
		side:    side,
		qty:     qty,
		price:   price,
		placed:  time.Now(),
	}
	g.open[o.orderID] = o

	if g.AutoFill {
		g.fillLocked(o, qty)
	}
	return &domain.OrderAck{OrderID: o.orderID, Message: "accepted"}, nil
}

// Fill executes qty shares of an open order at its limit price. Filling the
// last remaining share settles the order into the execution history.
func (g *SimulatorGateway) Fill(orderID string, qty int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.open[orderID]
	if !ok {
		return fmt.Errorf("fill: order %s not open", orderID)
	}
	if qty > o.qty-o.filled {
		return fmt.Errorf("fill: order %s has only %d shares remaining", orderID, o.qty-o.filled)
	}
	g.fillLocked(o, qty)
	return nil
}

func (g *SimulatorGateway) fillLocked(o *simOrder, qty int64) {
	o.filled += qty

	amount := float64(qty) * o.price
	if o.side == domain.SideBuy {
		g.cash -= amount
		h, ok := g.holdings[o.symbol]
		if !ok {
			h = &domain.Holding{Symbol: o.symbol, Name: o.symbol, LastPrice: o.price}
			g.holdings[o.symbol] = h
		}
		total := float64(h.Qty)*h.AvgPrice + amount
		h.Qty += qty
		h.AvgPrice = total / float64(h.Qty)
	} else {
		g.cash += amount
		if h, ok := g.holdings[o.symbol]; ok {
			h.Qty -= qty
			if h.Qty <= 0 {
				delete(g.holdings, o.symbol)
			}
		}
	}

	if o.filled == o.qty {
		delete(g.open, o.orderID)
		g.execs = append(g.execs, domain.Execution{
			OrderID:     o.orderID,
			Symbol:      o.symbol,
			ExecutedQty: o.filled,
			OrderQty:    o.qty,
		})
	}
}

// Cancel removes an open order and records a cancel confirmation.
func (g *SimulatorGateway) Cancel(_ context.Context, orderID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.open[orderID]
	if !ok {
		return fmt.Errorf("cancel: order %s not open", orderID)
	}
	delete(g.open, orderID)
	g.execs = append(g.execs, domain.Execution{
		OrderID:     o.orderID,
		Symbol:      o.symbol,
		ExecutedQty: o.filled,
		OrderQty:    o.qty,
		Cancelled:   true,
	})
	return nil
}

// ListOpenOrders returns the resting orders with partial fills reflected in
// the remaining quantity.
func (g *SimulatorGateway) ListOpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := make([]domain.OpenOrder, 0, len(g.open))
	for _, o := range g.open {
		rows = append(rows, domain.OpenOrder{
			OrderID:      o.orderID,
			Symbol:       o.symbol,
			Qty:          o.qty,
			RemainingQty: o.qty - o.filled,
		})
	}
	return rows, nil
}

// ListRecentExecutions returns all settled orders. The window is ignored;
// the simulator keeps its full history.
func (g *SimulatorGateway) ListRecentExecutions(_ context.Context, _ time.Duration) ([]domain.Execution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Execution, len(g.execs))
	copy(out, g.execs)
	return out, nil
}

// GetQuote returns the simulated price for a symbol.
func (g *SimulatorGateway) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	price, ok := g.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &domain.Quote{Symbol: symbol, Price: price, Time: time.Now()}, nil
}

// GetAccount returns the simulated cash and holdings.
func (g *SimulatorGateway) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	info := &domain.AccountInfo{
		Cash:     g.cash,
		Holdings: make([]domain.Holding, 0, len(g.holdings)),
	}
	stockValue := 0.0
	for _, h := range g.holdings {
		hc := *h
		if p, ok := g.prices[h.Symbol]; ok {
			hc.LastPrice = p
		}
		hc.UnrealizedPL = (hc.LastPrice - hc.AvgPrice) * float64(hc.Qty)
		if hc.AvgPrice > 0 {
			hc.UnrealizedPLPct = (hc.LastPrice - hc.AvgPrice) / hc.AvgPrice * 100
		}
		stockValue += hc.LastPrice * float64(hc.Qty)
		info.Holdings = append(info.Holdings, hc)
	}
	info.TotalValue = g.cash + stockValue
	return info, nil
}
