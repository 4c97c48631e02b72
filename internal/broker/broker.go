// Package broker defines the Gateway contract for brokerage operations and
// provides implementations for live trading and simulation. All broker
// responses are normalized into typed domain records at this boundary;
// nothing above this package ever sees a raw API payload.
package broker

import (
	"context"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// Gateway abstracts the brokerage: order placement and cancellation, the two
// reconciliation views (open orders and recent executions), quotes, and the
// account snapshot. Every call may fail transiently and must be safe to
// retry.
type Gateway interface {
	// Name returns the gateway identifier (e.g. "alpaca", "simulator").
	Name() string

	// Place submits a limit order and returns the broker-assigned order id.
	Place(ctx context.Context, side domain.Side, symbol string, qty int64, price float64) (*domain.OrderAck, error)

	// Cancel requests cancellation of an open order.
	Cancel(ctx context.Context, orderID, symbol string) error

	// ListOpenOrders returns the broker's amendable/cancelable order list.
	// Presence here is authoritative for "not yet fully settled".
	ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// ListRecentExecutions returns execution history within the window.
	// This view is authoritative for realized fills.
	ListRecentExecutions(ctx context.Context, window time.Duration) ([]domain.Execution, error)

	// GetQuote returns the current price for an instrument, or an error if
	// the broker has no quote.
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)

	// GetAccount returns cash, total value, and current holdings.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}
