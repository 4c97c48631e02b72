// Package engine implements the order lifecycle and position ledger: intent
// validation, order submission and tracking, poll-based fill reconciliation,
// exit rule evaluation, and crash recovery against the broker's account view.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/broker"
	"github.com/tgparkk/autoswingtrade/internal/config"
	"github.com/tgparkk/autoswingtrade/internal/domain"
	"github.com/tgparkk/autoswingtrade/internal/store"
	"github.com/tgparkk/autoswingtrade/internal/util"
)

// Status is a point-in-time summary of the engine for the API surface.
type Status struct {
	Running       bool       `json:"running"`
	Paused        bool       `json:"paused"`
	PauseReason   string     `json:"pause_reason,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	MarketOpen    bool       `json:"market_open"`
	Cash          float64    `json:"cash"`
	TotalValue    float64    `json:"total_value"`
	PositionCount int        `json:"position_count"`
	Orders        OrderStats `json:"orders"`
}

// Engine supervises the trading loops. It owns the ledger, the order
// tracker, and the risk manager, and is the only component the transport
// layer talks to.
type Engine struct {
	cfg       *config.Config
	gateway   broker.Gateway
	ledger    *Ledger
	tracker   *Tracker
	risk      *RiskManager
	positions store.PositionStore
	trades    store.TradeStore
	snapshots store.SnapshotStore
	archive   *store.ParquetArchive
	cal       *util.TradingCalendar
	events    chan domain.Event
	log       *slog.Logger

	mu          sync.Mutex
	running     bool
	paused      bool
	pauseReason string
	startedAt   time.Time
}

// New assembles an Engine from its dependencies. The events channel it
// creates is exposed via Events for the notification pump.
func New(
	cfg *config.Config,
	gw broker.Gateway,
	positions store.PositionStore,
	trades store.TradeStore,
	snapshots store.SnapshotStore,
	archive *store.ParquetArchive,
	cal *util.TradingCalendar,
	log *slog.Logger,
) *Engine {
	events := make(chan domain.Event, 256)
	ledger := NewLedger(log)
	tracker := NewTracker(gw, ledger, positions, trades, cal, TrackerConfig{
		ReconcileInterval: time.Duration(cfg.Trading.ReconcileIntervalSecs) * time.Second,
		OrderTimeout:      time.Duration(cfg.Trading.OrderTimeoutMinutes) * time.Minute,
		Retention:         time.Duration(cfg.Trading.OrderRetentionSecs) * time.Second,
		ExecutionWindow:   time.Duration(cfg.Trading.ExecutionWindowHours) * time.Hour,
		TestMode:          cfg.Trading.TestMode,
	}, events, log)

	return &Engine{
		cfg:       cfg,
		gateway:   gw,
		ledger:    ledger,
		tracker:   tracker,
		risk:      NewRiskManager(cfg.Trading),
		positions: positions,
		trades:    trades,
		snapshots: snapshots,
		archive:   archive,
		cal:       cal,
		events:    events,
		log:       log.With("component", "engine"),
	}
}

// Events returns the engine's notification channel.
func (e *Engine) Events() <-chan domain.Event { return e.events }

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

// Recover rebuilds the ledger after a restart by merging the broker's
// account view with stored positions. The broker is authoritative for
// quantity and average price; the store contributes strategy metadata that
// the broker cannot know.
func (e *Engine) Recover(ctx context.Context) error {
	acct, err := e.gateway.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("fetching account for recovery: %w", err)
	}

	stored, err := e.positions.LoadActivePositions(ctx)
	if err != nil {
		e.log.Warn("stored positions unavailable, recovering from broker only", "error", err)
		stored = nil
	}

	e.ledger.SetAccount(acct.Cash, acct.TotalValue)
	e.ledger.Restore(acct.Holdings, stored, func(symbol string) (float64, error) {
		q, err := e.gateway.GetQuote(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return q.Price, nil
	})

	// Re-save the merged view so the store reflects what recovery decided.
	for _, pos := range e.ledger.Positions() {
		p := pos
		if err := e.positions.SavePosition(ctx, &p); err != nil {
			e.log.Warn("recovered position not persisted", "symbol", p.Symbol, "error", err)
		}
	}
	e.log.Info("recovery complete",
		"positions", e.ledger.Count(), "cash", acct.Cash, "total_value", acct.TotalValue)
	return nil
}

// ---------------------------------------------------------------------------
// Intents
// ---------------------------------------------------------------------------

// Submit validates a trade intent against risk rules and, if accepted,
// places the order. The returned result is synchronous; fills arrive later
// through reconciliation.
func (e *Engine) Submit(ctx context.Context, intent domain.TradeIntent) domain.IntentResult {
	e.mu.Lock()
	paused, reason := e.paused, e.pauseReason
	e.mu.Unlock()
	if paused {
		return e.rejected(intent, reject(domain.RejectTradingPaused, "trading is paused: %s", reason))
	}

	var qty int64
	var err error
	switch intent.Side {
	case domain.SideBuy:
		qty, err = e.risk.ValidateBuy(intent, e.ledger.Count(), e.ledger.Has(intent.Symbol),
			e.ledger.Cash(), e.ledger.TotalValue())
	case domain.SideSell:
		var held int64
		if pos, ok := e.ledger.Get(intent.Symbol); ok {
			held = pos.Qty
		}
		qty, err = e.risk.ValidateSell(intent, held, e.tracker.PendingSellQty(intent.Symbol))
	default:
		return domain.IntentResult{
			Accepted: false,
			Reason:   domain.RejectZeroQuantity,
			Message:  fmt.Sprintf("unknown side %q", intent.Side),
		}
	}
	if err != nil {
		if rej, ok := err.(*RejectionError); ok {
			return e.rejected(intent, rej)
		}
		return domain.IntentResult{Accepted: false, Message: err.Error()}
	}

	intent.Qty = qty
	order, err := e.tracker.Submit(ctx, intent)
	if err != nil {
		e.log.Error("order submission failed", "symbol", intent.Symbol, "error", err)
		return domain.IntentResult{Accepted: false, Message: err.Error()}
	}
	return domain.IntentResult{Accepted: true, OrderID: order.OrderID, Qty: order.Qty}
}

func (e *Engine) rejected(intent domain.TradeIntent, rej *RejectionError) domain.IntentResult {
	e.log.Info("intent rejected", "symbol", intent.Symbol, "side", intent.Side,
		"reason", rej.Reason, "message", rej.Message)
	select {
	case e.events <- domain.Event{
		Kind:    domain.EventOrderRejected,
		Symbol:  intent.Symbol,
		Message: rej.Message,
		Time:    time.Now(),
	}:
	default:
	}
	return domain.IntentResult{Accepted: false, Reason: rej.Reason, Message: rej.Message}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// Run starts the reconcile and trading loops and blocks until the context
// is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.startedAt = time.Now()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.tracker.Run(ctx)
	}()

	interval := time.Duration(e.cfg.Trading.CheckIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Account snapshots and fill archiving run on a slower cadence.
	snapTicker := time.NewTicker(10 * interval)
	defer snapTicker.Stop()

	e.log.Info("engine started", "check_interval", interval,
		"reconcile_interval", time.Duration(e.cfg.Trading.ReconcileIntervalSecs)*time.Second)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			e.log.Info("engine stopped")
			return
		case <-ticker.C:
			e.tradingCycle(ctx)
		case <-snapTicker.C:
			e.snapshotCycle(ctx)
		}
	}
}

// tradingCycle refreshes prices, evaluates exit rules, and submits any
// resulting sell orders.
func (e *Engine) tradingCycle(ctx context.Context) {
	e.mu.Lock()
	paused := e.paused
	e.mu.Unlock()
	if paused {
		return
	}
	if !e.cfg.Trading.TestMode && e.cal != nil && !e.cal.IsMarketOpen(time.Now()) {
		return
	}

	e.refreshPrices(ctx)

	for _, intent := range e.risk.CheckExits(e.ledger.Positions(), time.Now()) {
		if e.tracker.HasActiveOrder(intent.Symbol) {
			continue // one in-flight order per symbol
		}
		res := e.Submit(ctx, intent)
		if res.Accepted && intent.Reason == "partial exit" {
			e.ledger.SetPartialExitDone(intent.Symbol)
		}
	}
}

// refreshPrices updates the last price on every position. A failed quote
// marks the position stale instead of carrying the old price silently.
func (e *Engine) refreshPrices(ctx context.Context) {
	for _, pos := range e.ledger.Positions() {
		q, err := e.gateway.GetQuote(ctx, pos.Symbol)
		if err != nil || q.Price <= 0 {
			e.ledger.UpdatePrice(pos.Symbol, pos.LastPrice, true)
			e.log.Warn("quote unavailable, marking price stale", "symbol", pos.Symbol, "error", err)
			continue
		}
		updated, ok := e.ledger.UpdatePrice(pos.Symbol, q.Price, false)
		if ok {
			if err := e.positions.UpdatePosition(ctx, &updated); err != nil {
				e.log.Warn("price update not persisted", "symbol", pos.Symbol, "error", err)
			}
		}
	}
}

// snapshotCycle refreshes account totals, persists a snapshot row, and
// archives the day's fills to parquet.
func (e *Engine) snapshotCycle(ctx context.Context) {
	acct, err := e.gateway.GetAccount(ctx)
	if err != nil {
		e.log.Warn("account refresh failed", "error", err)
		return
	}
	e.ledger.SetAccount(acct.Cash, acct.TotalValue)

	var stockValue, unrealized float64
	positions := e.ledger.Positions()
	for _, p := range positions {
		stockValue += p.MarketValue()
		unrealized += p.UnrealizedPL
	}
	snap := &domain.AccountSnapshot{
		Timestamp:     time.Now(),
		TotalValue:    acct.TotalValue,
		Cash:          acct.Cash,
		StockValue:    stockValue,
		UnrealizedPL:  unrealized,
		PositionCount: len(positions),
	}
	if err := e.snapshots.SaveAccountSnapshot(ctx, snap); err != nil {
		e.log.Warn("account snapshot not persisted", "error", err)
	}

	if e.archive != nil {
		recs, err := e.trades.ListTradeRecords(ctx, "", 1)
		if err != nil {
			e.log.Warn("trade records unavailable for archiving", "error", err)
		} else if err := e.archive.ArchiveFills(recs); err != nil {
			e.log.Warn("fill archiving failed", "error", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Control surface
// ---------------------------------------------------------------------------

// Pause stops new submissions and exit evaluation. Reconciliation of
// already-placed orders continues.
func (e *Engine) Pause(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.pauseReason = reason
	e.log.Info("trading paused", "reason", reason)
}

// Resume re-enables trading.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.pauseReason = ""
	e.log.Info("trading resumed")
}

// Status returns a point-in-time summary.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running, paused, reason, started := e.running, e.paused, e.pauseReason, e.startedAt
	e.mu.Unlock()

	marketOpen := false
	if e.cal != nil {
		marketOpen = e.cal.IsMarketOpen(time.Now())
	}
	return Status{
		Running:       running,
		Paused:        paused,
		PauseReason:   reason,
		StartedAt:     started,
		MarketOpen:    marketOpen,
		Cash:          e.ledger.Cash(),
		TotalValue:    e.ledger.TotalValue(),
		PositionCount: e.ledger.Count(),
		Orders:        e.tracker.Stats(),
	}
}

// ReconcileOnce runs one reconciliation cycle outside the tracker's timer,
// for tests and operator tooling.
func (e *Engine) ReconcileOnce(ctx context.Context) { e.tracker.ReconcileOnce(ctx) }

// Positions returns copies of every held position.
func (e *Engine) Positions() []domain.Position { return e.ledger.Positions() }

// Orders returns copies of every tracked order, including recently settled
// ones inside the retention window.
func (e *Engine) Orders() []domain.PendingOrder { return e.tracker.Snapshot() }

// TradeRecords returns the recent trade log.
func (e *Engine) TradeRecords(ctx context.Context, symbol string, days int) ([]domain.TradeRecord, error) {
	return e.trades.ListTradeRecords(ctx, symbol, days)
}
