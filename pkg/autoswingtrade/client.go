// Package autoswingtrade provides a Go client for the autoswingtrade
// status API. Types mirror the server's JSON wire format so the package is
// usable without importing server internals.
package autoswingtrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a running autoswingtrade server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8700".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// Status summarizes the engine state.
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

// OrderStats counts order submissions.
type OrderStats struct {
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Buys        int       `json:"buys"`
	Sells       int       `json:"sells"`
	LastOrderAt time.Time `json:"last_order_at"`
}

// Position is one held instrument.
type Position struct {
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

// Order is one tracked broker order.
type Order struct {
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

// Trade is one executed fill from the trade log.
type Trade struct {
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

// Intent is a buy or sell request.
type Intent struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Side       string  `json:"side"`
	Qty        int64   `json:"qty"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
}

// IntentResult is the server's synchronous answer to an Intent. A rejected
// intent is not an error at the transport level.
type IntentResult struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id,omitempty"`
	Qty      int64  `json:"qty,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Summary is the aggregated trade statistics.
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	Buys         int     `json:"buys"`
	Sells        int     `json:"sells"`
	BuyAmount    float64 `json:"buy_amount"`
	SellAmount   float64 `json:"sell_amount"`
	RealizedPL   float64 `json:"realized_pl"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// GetStatus retrieves the engine status.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "/api/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetPositions retrieves currently held positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/api/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetOrders retrieves tracked orders, including recently settled ones.
func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.get(ctx, "/api/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// GetTrades retrieves the trade log for the last days days. An empty symbol
// matches all instruments.
func (c *Client) GetTrades(ctx context.Context, symbol string, days int) ([]Trade, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var resp struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, "/api/trades", q, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// GetStats retrieves aggregated trade statistics for the last days days.
func (c *Client) GetStats(ctx context.Context, days int) (*Summary, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var s Summary
	if err := c.get(ctx, "/api/stats", q, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SubmitIntent submits a trade intent. Engine rejections come back in the
// result with Accepted false, not as an error.
func (c *Client) SubmitIntent(ctx context.Context, intent Intent) (*IntentResult, error) {
	var res IntentResult
	if err := c.post(ctx, "/api/intents", intent, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Pause stops new submissions and exit evaluation on the server.
func (c *Client) Pause(ctx context.Context, reason string) (*Status, error) {
	var st Status
	body := map[string]string{"reason": reason}
	if err := c.post(ctx, "/api/pause", body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Resume re-enables trading on the server.
func (c *Client) Resume(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.post(ctx, "/api/resume", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 422 carries a decodable rejection body.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
