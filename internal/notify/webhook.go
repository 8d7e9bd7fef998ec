// Package notify delivers operator notifications to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

const httpTimeout = 3 * time.Second

// Webhook posts notifications to an operator webhook URL. Delivery is
// asynchronous and fail-silent: the alert already lives in the store, the
// webhook is a convenience channel.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook returns a Webhook notifier, or nil if no URL is configured.
// A nil *Webhook is safe to use.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: httpTimeout},
		logger: logger,
	}
}

// Notify implements service.Notifier.
func (w *Webhook) Notify(ctx context.Context, n *model.Notification) {
	if w == nil {
		return
	}

	go func() {
		payload := map[string]any{
			"type":      n.Type,
			"severity":  n.Severity,
			"title":     n.Title,
			"message":   n.Message,
			"metadata":  n.Metadata,
			"timestamp": n.CreatedAt.UTC().Format(time.RFC3339),
		}
		if n.CredentialID != nil {
			payload["credential_id"] = *n.CredentialID
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Debug("webhook delivery failed", "error", err)
			return
		}
		resp.Body.Close()
	}()
}
