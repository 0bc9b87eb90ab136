package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/campus-carpool/internal/models"
)

// Dispatcher delivers an itinerary offer to a driver.
type Dispatcher interface {
	Offer(ctx context.Context, offer models.MatchOffer) error
}

// WebhookDispatcher posts offers to the driver app backend.
type WebhookDispatcher struct {
	Endpoint string
	Client   *http.Client
}

func NewWebhookDispatcher(endpoint string) *WebhookDispatcher {
	return &WebhookDispatcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (d *WebhookDispatcher) Offer(ctx context.Context, offer models.MatchOffer) error {
	b, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch webhook status %d", resp.StatusCode)
	}
	return nil
}

// Fanout tries the live websocket session first and falls back to the webhook.
type Fanout struct {
	WS       *WSRegistry
	Fallback Dispatcher
	Logger   *slog.Logger
}

func (f *Fanout) Offer(ctx context.Context, offer models.MatchOffer) error {
	if f.WS != nil {
		err := f.WS.Offer(ctx, offer)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoSession) && f.Logger != nil {
			f.Logger.Warn("ws offer failed", "driver_id", offer.DriverID, "error", err)
		}
	}
	if f.Fallback == nil {
		return ErrNoSession
	}
	return f.Fallback.Offer(ctx, offer)
}
