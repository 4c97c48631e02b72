// Package notify delivers engine events to an outbound webhook. Delivery is
// best effort; a failed or slow webhook never blocks trading.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// Notifier delivers one event to an external channel.
type Notifier interface {
	Send(ctx context.Context, ev domain.Event) error
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// WebhookNotifier posts events as JSON to a configured webhook URL. An empty
// URL disables delivery without erroring.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	enabled bool
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		enabled: url != "",
	}
}

type webhookPayload struct {
	Kind    string `json:"kind"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Send posts the event. Disabled notifiers report success.
func (n *WebhookNotifier) Send(ctx context.Context, ev domain.Event) error {
	if !n.enabled {
		return nil
	}

	data, err := json.Marshal(webhookPayload{
		Kind:    string(ev.Kind),
		Symbol:  ev.Symbol,
		Message: ev.Message,
		Time:    ev.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pump
// ---------------------------------------------------------------------------

// Pump drains an event channel into a notifier until the context is
// cancelled or the channel closes. Send failures are logged and dropped.
func Pump(ctx context.Context, events <-chan domain.Event, n Notifier, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := n.Send(ctx, ev); err != nil {
				log.Warn("notification not delivered",
					"kind", ev.Kind, "symbol", ev.Symbol, "error", err)
			}
		}
	}
}
