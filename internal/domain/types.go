// Package domain defines the core record types shared across the trading
// engine: orders, positions, fills, intents, and broker-reported state.
package domain

import "time"

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of a pending order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// PositionStatus is the lifecycle state of a held position.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

// RejectionReason categorises why an intent was rejected before submission.
type RejectionReason string

const (
	RejectInsufficientFunds RejectionReason = "insufficient_funds"
	RejectPositionLimit     RejectionReason = "position_limit"
	RejectDuplicateHolding  RejectionReason = "duplicate_holding"
	RejectNothingToSell     RejectionReason = "nothing_to_sell"
	RejectZeroQuantity      RejectionReason = "zero_quantity"
	RejectTradingPaused     RejectionReason = "trading_paused"
)

// ---------------------------------------------------------------------------
// Intents (SignalConsumer boundary)
// ---------------------------------------------------------------------------

// TradeIntent is a request to buy or sell produced by the signal layer.
type TradeIntent struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Side       Side    `json:"side"`
	Qty        int64   `json:"qty"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
}

// IntentResult is the synchronous answer to a TradeIntent.
type IntentResult struct {
	Accepted bool            `json:"accepted"`
	OrderID  string          `json:"order_id,omitempty"`
	Qty      int64           `json:"qty,omitempty"` // quantity actually submitted after clamping
	Reason   RejectionReason `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// PendingOrder is one outstanding broker order tracked by the engine.
//
// Invariants: FilledQty + RemainingQty == Qty once both are known, and
// AccountedQty <= FilledQty at all times. Only the delta
// FilledQty - AccountedQty is ever applied to the ledger in one poll cycle.
type PendingOrder struct {
	OrderID       string
	Symbol        string
	Name          string
	Side          Side
	Qty           int64
	LimitPrice    float64
	FilledQty     int64
	RemainingQty  int64
	AccountedQty  int64 // filled quantity already applied to the ledger
	Status        OrderStatus
	SubmittedAt   time.Time
	LastCheckedAt time.Time
	Timeout       time.Duration
	CancelReason  string
	TerminalAt    time.Time // when the order reached a terminal status

	// ExpireRequested is set once an expiry cancel has been accepted by
	// the broker. The order stays non-terminal until the cancel
	// confirmation is observed in the execution history, so a fill that
	// raced the cancel is still applied.
	ExpireRequested bool

	// Strategy intent carried through to the position on fill.
	StopLoss   float64
	TakeProfit float64
	Reason     string
	Pattern    string
}

// FullyFilled reports whether every requested share has been executed.
func (o *PendingOrder) FullyFilled() bool {
	return o.FilledQty == o.Qty && o.RemainingQty == 0
}

// PartiallyFilled reports whether some but not all shares have executed.
func (o *PendingOrder) PartiallyFilled() bool {
	return o.FilledQty > 0 && o.RemainingQty > 0
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// Position is one held instrument. The quantity/price fields mirror the
// broker; the strategy fields belong to this process and survive restarts
// via the persistent store.
type Position struct {
	Symbol          string
	Name            string
	Qty             int64
	AvgPrice        float64
	LastPrice       float64
	UnrealizedPL    float64
	UnrealizedPLPct float64
	OpenedAt        time.Time
	LastUpdate      time.Time
	Status          PositionStatus
	PriceStale      bool // LastPrice could not be refreshed and may be outdated

	// Strategy metadata.
	StopLoss        float64
	TakeProfit      float64
	EntryReason     string
	Pattern         string
	PartialExitDone bool
}

// MarketValue returns the position's value at the last known price.
func (p *Position) MarketValue() float64 {
	return float64(p.Qty) * p.LastPrice
}

// RecomputePL refreshes the unrealized P&L fields from LastPrice.
func (p *Position) RecomputePL() {
	p.UnrealizedPL = (p.LastPrice - p.AvgPrice) * float64(p.Qty)
	if p.AvgPrice > 0 {
		p.UnrealizedPLPct = (p.LastPrice - p.AvgPrice) / p.AvgPrice * 100
	}
}

// ---------------------------------------------------------------------------
// Trade records
// ---------------------------------------------------------------------------

// TradeRecord is one executed fill (or slice of a fill), append-only.
type TradeRecord struct {
	Timestamp  time.Time
	Side       Side
	Symbol     string
	Name       string
	Qty        int64
	Price      float64
	Amount     float64
	Reason     string
	OrderID    string
	RealizedPL float64 // sells only; (fill price - avg cost) * qty
}

// ---------------------------------------------------------------------------
// Broker-reported state (normalized at the gateway boundary)
// ---------------------------------------------------------------------------

// OrderAck is the broker's response to a successful order placement.
type OrderAck struct {
	OrderID string
	Message string
}

// OpenOrder is one row of the broker's amendable/cancelable order list.
// Presence in this list is authoritative for "not yet fully settled".
type OpenOrder struct {
	OrderID      string
	Symbol       string
	Qty          int64
	RemainingQty int64
}

// Execution is one row of the broker's recent execution history.
// ExecutedQty may be zero on some broker responses even for settled orders;
// absent fields are coerced to zero at the gateway boundary.
type Execution struct {
	OrderID     string
	Symbol      string
	ExecutedQty int64
	OrderQty    int64
	Cancelled   bool // row records a cancel confirmation, not a fill
}

// Quote is a current-price observation for one instrument.
type Quote struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Holding is one broker-reported position row.
type Holding struct {
	Symbol          string
	Name            string
	Qty             int64
	AvgPrice        float64
	LastPrice       float64
	UnrealizedPL    float64
	UnrealizedPLPct float64
}

// AccountInfo is a snapshot of the account's financial state.
type AccountInfo struct {
	Cash       float64 // available for new buys
	TotalValue float64 // cash + market value of holdings
	Holdings   []Holding
}

// AccountSnapshot is a periodic persisted record of account state.
type AccountSnapshot struct {
	Timestamp     time.Time
	TotalValue    float64
	Cash          float64
	StockValue    float64
	UnrealizedPL  float64
	PositionCount int
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// EventKind classifies a notification event.
type EventKind string

const (
	EventOrderSubmitted EventKind = "order_submitted"
	EventOrderFilled    EventKind = "order_filled"
	EventOrderPartial   EventKind = "order_partial"
	EventOrderCancelled EventKind = "order_cancelled"
	EventOrderExpired   EventKind = "order_expired"
	EventOrderRejected  EventKind = "order_rejected"
	EventError          EventKind = "error"
)

// Event is one notification emitted by the engine.
type Event struct {
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
