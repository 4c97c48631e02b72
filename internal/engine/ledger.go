package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// ErrOversell is returned when a sell fill exceeds the held quantity. It
// signals a corrupted ledger or a double-counted fill; the caller must halt
// processing of that instrument rather than clamp.
var ErrOversell = errors.New("sell fill exceeds held quantity")

// FillMeta is the strategy intent carried onto a position when a buy fill
// opens or extends it.
type FillMeta struct {
	Name       string
	StopLoss   float64
	TakeProfit float64
	Reason     string
	Pattern    string
}

// Ledger is the in-memory authoritative map of held positions plus the
// account cash balance. It is mutated only through ApplyFill, UpdatePrice,
// and Restore; every read returns copies, never live structures.
type Ledger struct {
	mu         sync.RWMutex
	positions  map[string]*domain.Position
	cash       float64
	totalValue float64
	log        *slog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(log *slog.Logger) *Ledger {
	return &Ledger{
		positions: make(map[string]*domain.Position),
		log:       log.With("component", "ledger"),
	}
}

// SetAccount records the broker-reported cash and total account value.
func (l *Ledger) SetAccount(cash, totalValue float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = cash
	l.totalValue = totalValue
}

// Cash returns the available cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// TotalValue returns the last known total account value.
func (l *Ledger) TotalValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalValue
}

// Count returns the number of held positions.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Has reports whether a position exists for the symbol.
func (l *Ledger) Has(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

// Get returns a copy of the position for a symbol.
func (l *Ledger) Get(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns copies of all positions, sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ApplyFill applies one fill delta to the ledger: cash moves by qty*price,
// a buy opens or extends the position with a recomputed size-weighted
// average cost, and a sell decrements quantity, closing the position at
// zero. It returns the resulting position state (zero-valued when the
// position closed), the realized P&L for sells, and whether the position
// was removed.
func (l *Ledger) ApplyFill(side domain.Side, symbol string, qty int64, price float64, meta FillMeta) (pos domain.Position, realized float64, closed bool, err error) {
	if qty <= 0 {
		return domain.Position{}, 0, false, fmt.Errorf("non-positive fill quantity %d for %s", qty, symbol)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	amount := float64(qty) * price

	if side == domain.SideBuy {
		p, ok := l.positions[symbol]
		if ok {
			// Size-weighted average over all buys not yet offset by sells.
			total := float64(p.Qty)*p.AvgPrice + amount
			p.Qty += qty
			p.AvgPrice = total / float64(p.Qty)
			p.LastPrice = price
			p.LastUpdate = now
			if meta.StopLoss > 0 {
				p.StopLoss = meta.StopLoss
			}
			if meta.TakeProfit > 0 {
				p.TakeProfit = meta.TakeProfit
			}
		} else {
			p = &domain.Position{
				Symbol:      symbol,
				Name:        meta.Name,
				Qty:         qty,
				AvgPrice:    price,
				LastPrice:   price,
				OpenedAt:    now,
				LastUpdate:  now,
				Status:      domain.PositionStatusActive,
				StopLoss:    meta.StopLoss,
				TakeProfit:  meta.TakeProfit,
				EntryReason: meta.Reason,
				Pattern:     meta.Pattern,
			}
			l.positions[symbol] = p
		}
		p.RecomputePL()
		l.cash -= amount
		return *p, 0, false, nil
	}

	// Sell.
	p, ok := l.positions[symbol]
	if !ok || p.Qty <= 0 {
		return domain.Position{}, 0, false, fmt.Errorf("%w: no position for %s", ErrOversell, symbol)
	}
	if qty > p.Qty {
		return domain.Position{}, 0, false, fmt.Errorf("%w: %s sell %d > held %d", ErrOversell, symbol, qty, p.Qty)
	}

	realized = (price - p.AvgPrice) * float64(qty)
	p.Qty -= qty
	p.LastPrice = price
	p.LastUpdate = now
	l.cash += amount

	if p.Qty == 0 {
		delete(l.positions, symbol)
		return domain.Position{}, realized, true, nil
	}
	// A partial sell leaves the position active. The status only flips on
	// full close, so restart recovery sees every still-held row.
	p.RecomputePL()
	return *p, realized, false, nil
}

// UpdatePrice refreshes the last price of a position and recomputes its
// unrealized P&L. stale marks the price as possibly outdated (quote fetch
// failed and the previous price was kept).
func (l *Ledger) UpdatePrice(symbol string, price float64, stale bool) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	if !stale && price > 0 {
		p.LastPrice = price
	}
	p.PriceStale = stale
	p.LastUpdate = time.Now()
	p.RecomputePL()
	return *p, true
}

// SetPartialExitDone flags that a position's one-time partial exit has been
// taken.
func (l *Ledger) SetPartialExitDone(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[symbol]; ok {
		p.PartialExitDone = true
	}
}

// Restore seeds the ledger at startup by merging broker-reported holdings
// with positions recovered from the persistent store. The broker is
// authoritative for quantity and price; the store is authoritative for
// strategy intent (stop-loss, take-profit, entry reason, pattern). Stored
// positions the broker no longer reports are kept with their price
// refreshed via quote; if the quote fails the stale stored price is kept
// and flagged.
func (l *Ledger) Restore(holdings []domain.Holding, stored map[string]domain.Position, quote func(symbol string) (float64, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.positions = make(map[string]*domain.Position, len(holdings))

	for _, h := range holdings {
		if h.Qty <= 0 {
			continue
		}
		p := &domain.Position{
			Symbol:          h.Symbol,
			Name:            h.Name,
			Qty:             h.Qty,
			AvgPrice:        h.AvgPrice,
			LastPrice:       h.LastPrice,
			UnrealizedPL:    h.UnrealizedPL,
			UnrealizedPLPct: h.UnrealizedPLPct,
			OpenedAt:        now,
			LastUpdate:      now,
			Status:          domain.PositionStatusActive,
			EntryReason:     "recovered from broker holdings",
		}
		if s, ok := stored[h.Symbol]; ok {
			p.StopLoss = s.StopLoss
			p.TakeProfit = s.TakeProfit
			p.EntryReason = s.EntryReason
			p.Pattern = s.Pattern
			p.PartialExitDone = s.PartialExitDone
			if !s.OpenedAt.IsZero() {
				p.OpenedAt = s.OpenedAt
			}
			if p.Name == "" || p.Name == p.Symbol {
				if s.Name != "" {
					p.Name = s.Name
				}
			}
		}
		l.positions[h.Symbol] = p
		l.log.Info("position restored", "symbol", h.Symbol, "qty", p.Qty, "source", "broker")
	}

	// Store-only rows: filled or transferred while this process was down.
	for symbol, s := range stored {
		if _, ok := l.positions[symbol]; ok {
			continue
		}
		p := s
		p.LastUpdate = now
		if price, err := quote(symbol); err == nil && price > 0 {
			p.LastPrice = price
			p.PriceStale = false
		} else {
			p.PriceStale = true
			l.log.Warn("quote refresh failed for stored position, keeping stale price",
				"symbol", symbol, "price", p.LastPrice)
		}
		p.RecomputePL()
		l.positions[symbol] = &p
		l.log.Info("position restored", "symbol", symbol, "qty", p.Qty, "source", "store")
	}
}
