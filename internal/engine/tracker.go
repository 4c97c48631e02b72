package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/broker"
	"github.com/tgparkk/autoswingtrade/internal/domain"
	"github.com/tgparkk/autoswingtrade/internal/store"
	"github.com/tgparkk/autoswingtrade/internal/util"
)

// TrackerConfig carries every interval, timeout, and window the tracker
// uses. Call sites never hold their own constants.
type TrackerConfig struct {
	ReconcileInterval time.Duration
	OrderTimeout      time.Duration
	Retention         time.Duration // terminal orders stay visible this long
	ExecutionWindow   time.Duration // broker history lookback
	TestMode          bool          // expiry anchors at submission, not session open
}

// OrderStats counts submissions handled by the tracker.
type OrderStats struct {
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Buys        int       `json:"buys"`
	Sells       int       `json:"sells"`
	LastOrderAt time.Time `json:"last_order_at"`
}

// Tracker owns the set of outstanding orders and runs the reconciliation
// loop. The reconcile goroutine and the submission path are the only
// mutators of the pending-order set; everything else reads immutable
// snapshots.
type Tracker struct {
	gateway   broker.Gateway
	ledger    *Ledger
	positions store.PositionStore
	trades    store.TradeStore
	cal       *util.TradingCalendar
	cfg       TrackerConfig
	events    chan<- domain.Event
	log       *slog.Logger

	mu     sync.Mutex
	orders map[string]*domain.PendingOrder
	stats  OrderStats

	now func() time.Time // injectable clock for tests
}

// NewTracker creates a Tracker wired with the given dependencies.
func NewTracker(
	gw broker.Gateway,
	ledger *Ledger,
	positions store.PositionStore,
	trades store.TradeStore,
	cal *util.TradingCalendar,
	cfg TrackerConfig,
	events chan<- domain.Event,
	log *slog.Logger,
) *Tracker {
	return &Tracker{
		gateway:   gw,
		ledger:    ledger,
		positions: positions,
		trades:    trades,
		cal:       cal,
		cfg:       cfg,
		events:    events,
		log:       log.With("component", "tracker"),
		orders:    make(map[string]*domain.PendingOrder),
		now:       time.Now,
	}
}

// Submit places the order with the broker and, on success, registers a
// PendingOrder in the active set. The ledger is never touched here: it
// changes only on confirmed fills, so an order later found unfilled is
// never counted.
func (t *Tracker) Submit(ctx context.Context, intent domain.TradeIntent) (*domain.PendingOrder, error) {
	ack, err := t.gateway.Place(ctx, intent.Side, intent.Symbol, intent.Qty, intent.Price)

	t.mu.Lock()
	t.stats.Total++
	t.stats.LastOrderAt = t.now()
	if intent.Side == domain.SideBuy {
		t.stats.Buys++
	} else {
		t.stats.Sells++
	}
	if err != nil || ack == nil || ack.OrderID == "" {
		t.stats.Failed++
		t.mu.Unlock()
		if err == nil {
			err = errors.New("broker returned no order id")
		}
		return nil, fmt.Errorf("placing %s order for %s: %w", intent.Side, intent.Symbol, err)
	}
	t.stats.Succeeded++

	o := &domain.PendingOrder{
		OrderID:      ack.OrderID,
		Symbol:       intent.Symbol,
		Name:         intent.Name,
		Side:         intent.Side,
		Qty:          intent.Qty,
		LimitPrice:   intent.Price,
		FilledQty:    0,
		RemainingQty: intent.Qty,
		Status:       domain.OrderStatusPending,
		SubmittedAt:  t.now(),
		Timeout:      t.cfg.OrderTimeout,
		StopLoss:     intent.StopLoss,
		TakeProfit:   intent.TakeProfit,
		Reason:       intent.Reason,
		Pattern:      intent.Pattern,
	}
	t.orders[o.OrderID] = o
	t.mu.Unlock()

	t.log.Info("order submitted",
		"order_id", o.OrderID, "symbol", o.Symbol, "side", o.Side,
		"qty", o.Qty, "price", o.LimitPrice)
	t.emit(domain.EventOrderSubmitted, o.Symbol,
		fmt.Sprintf("%s %d %s @ %.0f", o.Side, o.Qty, o.Symbol, o.LimitPrice))

	cp := *o
	return &cp, nil
}

// Run drives the reconciliation loop until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce runs one reconciliation cycle: expire overdue orders, fetch
// the broker's two views once, classify every active order, apply fill
// deltas, then sweep terminal orders past the retention window.
func (t *Tracker) ReconcileOnce(ctx context.Context) {
	active := t.activeOrders()
	if len(active) == 0 {
		t.sweep()
		return
	}

	now := t.now()

	var expireCandidates []*domain.PendingOrder
	var pollCandidates []*domain.PendingOrder
	for _, o := range active {
		if !o.ExpireRequested && t.expired(o, now) {
			expireCandidates = append(expireCandidates, o)
		} else {
			pollCandidates = append(pollCandidates, o)
		}
	}

	for _, o := range expireCandidates {
		t.expire(ctx, o)
		// The order is polled in the same cycle either way: an accepted
		// cancel settles into history carrying any fill that raced it,
		// and a rejected cancel typically means the order settled at the
		// broker first.
		pollCandidates = append(pollCandidates, o)
	}

	if len(pollCandidates) > 0 {
		open, err := t.gateway.ListOpenOrders(ctx)
		if err != nil {
			t.log.Warn("open-order list unavailable, skipping cycle", "error", err)
			t.sweep()
			return
		}
		execs, err := t.gateway.ListRecentExecutions(ctx, t.cfg.ExecutionWindow)
		if err != nil {
			t.log.Warn("execution history unavailable, skipping cycle", "error", err)
			t.sweep()
			return
		}

		for _, o := range pollCandidates {
			t.reconcileOrder(ctx, o, open, execs)
		}
	}

	t.sweep()
}

// activeOrders returns pointers to the non-terminal orders. Only the
// reconcile goroutine dereferences these for mutation.
func (t *Tracker) activeOrders() []*domain.PendingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*domain.PendingOrder, 0, len(t.orders))
	for _, o := range t.orders {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

// expired reports whether an order's timeout has elapsed since its
// reference time. Pre-open orders anchor at the session open, so they never
// expire while the market remains closed; test mode anchors at submission.
func (t *Tracker) expired(o *domain.PendingOrder, now time.Time) bool {
	ref := o.SubmittedAt
	if !t.cfg.TestMode && t.cal != nil {
		ref = t.cal.ExpiryReference(o.SubmittedAt)
	}
	return now.Sub(ref) > o.Timeout
}

// expire requests cancellation of an overdue order. The order is not
// finalized here: the terminal transition happens in reconcileOrder once
// the cancel confirmation shows up in the execution history, which also
// carries any quantity that filled between the last poll and the cancel.
func (t *Tracker) expire(ctx context.Context, o *domain.PendingOrder) {
	if err := t.gateway.Cancel(ctx, o.OrderID, o.Symbol); err != nil {
		t.log.Warn("expiry cancel rejected, re-polling order",
			"order_id", o.OrderID, "symbol", o.Symbol, "error", err)
		return
	}

	t.mu.Lock()
	o.ExpireRequested = true
	t.mu.Unlock()

	t.log.Info("expiry cancel accepted", "order_id", o.OrderID,
		"symbol", o.Symbol, "filled", o.FilledQty, "qty", o.Qty)
}

// reconcileOrder classifies one order against the two broker views and
// applies any new fill delta. Ordering is strict: classify, then ledger,
// then persistence, then notification.
func (t *Tracker) reconcileOrder(ctx context.Context, o *domain.PendingOrder, open []domain.OpenOrder, execs []domain.Execution) {
	now := t.now()
	state := ClassifyFill(o.OrderID, o.Qty, open, execs)

	t.mu.Lock()
	o.LastCheckedAt = now
	t.mu.Unlock()

	if !state.Known {
		// No information this cycle; do not guess completion from absence.
		return
	}

	delta := state.FilledQty - o.AccountedQty
	if delta > 0 {
		if err := t.applyDelta(ctx, o, delta); err != nil {
			if errors.Is(err, ErrOversell) {
				// Ledger invariant violated: stop polling this order and
				// make the failure operator-visible instead of clamping.
				t.mu.Lock()
				o.Status = domain.OrderStatusCancelled
				o.CancelReason = "halted: " + err.Error()
				o.TerminalAt = now
				t.mu.Unlock()
				t.log.Error("ledger invariant violation, halting instrument",
					"order_id", o.OrderID, "symbol", o.Symbol, "error", err)
				t.emit(domain.EventError, o.Symbol, err.Error())
			} else {
				t.log.Warn("fill application failed, will retry next cycle",
					"order_id", o.OrderID, "symbol", o.Symbol, "error", err)
			}
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	o.FilledQty = state.FilledQty
	o.RemainingQty = state.RemainingQty
	if delta > 0 {
		o.AccountedQty = state.FilledQty
	}

	switch {
	case state.Cancelled:
		o.Status = domain.OrderStatusCancelled
		o.TerminalAt = now
		if o.ExpireRequested {
			o.CancelReason = "expired unfilled"
			t.log.Info("order expired", "order_id", o.OrderID,
				"symbol", o.Symbol, "filled", o.FilledQty, "qty", o.Qty)
			t.emit(domain.EventOrderExpired, o.Symbol,
				fmt.Sprintf("order for %s expired unfilled (%d/%d)", o.Symbol, o.FilledQty, o.Qty))
		} else {
			o.CancelReason = "cancelled by broker"
			t.log.Info("order cancelled by broker", "order_id", o.OrderID,
				"symbol", o.Symbol, "filled", o.FilledQty)
			t.emit(domain.EventOrderCancelled, o.Symbol,
				fmt.Sprintf("order for %s cancelled by broker (%d/%d filled)", o.Symbol, o.FilledQty, o.Qty))
		}

	case state.FilledQty > 0 && state.FilledQty == state.OrderQty:
		o.Status = domain.OrderStatusFilled
		o.TerminalAt = now
		if delta > 0 {
			t.log.Info("order filled", "order_id", o.OrderID, "symbol", o.Symbol,
				"qty", o.FilledQty, "price", o.LimitPrice)
			t.emit(domain.EventOrderFilled, o.Symbol,
				fmt.Sprintf("%s %d %s filled @ %.0f", o.Side, o.FilledQty, o.Symbol, o.LimitPrice))
		}

	case state.FilledQty > 0:
		o.Status = domain.OrderStatusPartiallyFilled
		if delta > 0 {
			t.log.Info("order partially filled", "order_id", o.OrderID,
				"symbol", o.Symbol, "filled", o.FilledQty, "remaining", o.RemainingQty)
			t.emit(domain.EventOrderPartial, o.Symbol,
				fmt.Sprintf("%s %s %d/%d filled", o.Side, o.Symbol, o.FilledQty, o.Qty))
		}
	}
}

// applyDelta applies exactly delta newly observed shares to the ledger and
// the persistent store.
func (t *Tracker) applyDelta(ctx context.Context, o *domain.PendingOrder, delta int64) error {
	meta := FillMeta{
		Name:       o.Name,
		StopLoss:   o.StopLoss,
		TakeProfit: o.TakeProfit,
		Reason:     o.Reason,
		Pattern:    o.Pattern,
	}
	pos, realized, closed, err := t.ledger.ApplyFill(o.Side, o.Symbol, delta, o.LimitPrice, meta)
	if err != nil {
		return err
	}

	// Persistence failures never roll back the in-memory ledger: the live
	// process stays authoritative and the next successful write
	// re-synchronizes the store.
	if closed {
		if err := t.positions.RemovePosition(ctx, o.Symbol); err != nil {
			t.log.Warn("position removal not persisted", "symbol", o.Symbol, "error", err)
		}
	} else {
		if err := t.positions.SavePosition(ctx, &pos); err != nil {
			t.log.Warn("position not persisted", "symbol", o.Symbol, "error", err)
		}
	}

	rec := &domain.TradeRecord{
		Timestamp:  t.now(),
		Side:       o.Side,
		Symbol:     o.Symbol,
		Name:       o.Name,
		Qty:        delta,
		Price:      o.LimitPrice,
		Amount:     float64(delta) * o.LimitPrice,
		Reason:     o.Reason,
		OrderID:    o.OrderID,
		RealizedPL: realized,
	}
	if err := t.trades.SaveTradeRecord(ctx, rec); err != nil {
		t.log.Warn("trade record not persisted", "order_id", o.OrderID, "error", err)
	}
	return nil
}

// sweep drops terminal orders whose retention window has elapsed. The
// window keeps just-settled orders visible to late status queries.
func (t *Tracker) sweep() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, o := range t.orders {
		if o.Status.Terminal() && !o.TerminalAt.IsZero() && now.Sub(o.TerminalAt) > t.cfg.Retention {
			delete(t.orders, id)
		}
	}
}

// Snapshot returns copies of all tracked orders, sorted by submission time.
func (t *Tracker) Snapshot() []domain.PendingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.PendingOrder, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// PendingSellQty returns the quantity of a symbol reserved by active sell
// orders, for sell validation.
func (t *Tracker) PendingSellQty(symbol string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var reserved int64
	for _, o := range t.orders {
		if o.Symbol == symbol && o.Side == domain.SideSell && !o.Status.Terminal() {
			reserved += o.RemainingQty
		}
	}
	return reserved
}

// HasActiveOrder reports whether any non-terminal order exists for the
// symbol.
func (t *Tracker) HasActiveOrder(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.orders {
		if o.Symbol == symbol && !o.Status.Terminal() {
			return true
		}
	}
	return false
}

// Stats returns a copy of the submission counters.
func (t *Tracker) Stats() OrderStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tracker) emit(kind domain.EventKind, symbol, msg string) {
	if t.events == nil {
		return
	}
	ev := domain.Event{Kind: kind, Symbol: symbol, Message: msg, Time: t.now()}
	select {
	case t.events <- ev:
	default:
		t.log.Warn("event channel full, dropping notification", "kind", kind, "symbol", symbol)
	}
}
