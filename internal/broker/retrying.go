package broker

import (
	"context"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
	"github.com/tgparkk/autoswingtrade/internal/util"
)

// Compile-time interface check.
var _ Gateway = (*RetryingGateway)(nil)

// RetryingGateway wraps a Gateway with the shared call discipline: a
// token-bucket rate limit before every request and bounded retries with
// linear backoff on failure. Callers above this layer never retry
// themselves; an error from here means attempts were exhausted for this
// cycle.
type RetryingGateway struct {
	inner    Gateway
	attempts int
	delay    time.Duration
	limiter  *util.RateLimiter
}

// WithRetry wraps gw so every call is rate limited and retried up to
// attempts times with linear backoff starting at delay.
func WithRetry(gw Gateway, attempts int, delay time.Duration, limiter *util.RateLimiter) *RetryingGateway {
	return &RetryingGateway{
		inner:    gw,
		attempts: attempts,
		delay:    delay,
		limiter:  limiter,
	}
}

// Name returns the wrapped gateway's identifier.
func (g *RetryingGateway) Name() string { return g.inner.Name() }

func (g *RetryingGateway) call(ctx context.Context, fn func() error) error {
	return util.Retry(ctx, g.attempts, g.delay, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn()
	})
}

func (g *RetryingGateway) Place(ctx context.Context, side domain.Side, symbol string, qty int64, price float64) (*domain.OrderAck, error) {
	var ack *domain.OrderAck
	err := g.call(ctx, func() error {
		var err error
		ack, err = g.inner.Place(ctx, side, symbol, qty, price)
		return err
	})
	return ack, err
}

func (g *RetryingGateway) Cancel(ctx context.Context, orderID, symbol string) error {
	return g.call(ctx, func() error {
		return g.inner.Cancel(ctx, orderID, symbol)
	})
}

func (g *RetryingGateway) ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var rows []domain.OpenOrder
	err := g.call(ctx, func() error {
		var err error
		rows, err = g.inner.ListOpenOrders(ctx)
		return err
	})
	return rows, err
}

func (g *RetryingGateway) ListRecentExecutions(ctx context.Context, window time.Duration) ([]domain.Execution, error) {
	var rows []domain.Execution
	err := g.call(ctx, func() error {
		var err error
		rows, err = g.inner.ListRecentExecutions(ctx, window)
		return err
	})
	return rows, err
}

func (g *RetryingGateway) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	var q *domain.Quote
	err := g.call(ctx, func() error {
		var err error
		q, err = g.inner.GetQuote(ctx, symbol)
		return err
	})
	return q, err
}

func (g *RetryingGateway) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	var info *domain.AccountInfo
	err := g.call(ctx, func() error {
		var err error
		info, err = g.inner.GetAccount(ctx)
		return err
	})
	return info, err
}
