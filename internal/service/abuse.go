package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// Notifier delivers operator notifications to an external channel (e.g. a
// webhook). Implementations must not block and must never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification)
}

// AbuseMonitor inspects recent ledger entries after each completed request
// and raises operator notifications when thresholds are crossed. It is
// advisory only: it never alters the response of the triggering request, and
// every failure inside it is logged and swallowed.
type AbuseMonitor struct {
	store          *store.Store
	notifier       Notifier
	logger         *slog.Logger
	window         time.Duration
	errorThreshold int
}

func NewAbuseMonitor(st *store.Store, notifier Notifier, logger *slog.Logger) *AbuseMonitor {
	return &AbuseMonitor{
		store:          st,
		notifier:       notifier,
		logger:         logger,
		window:         time.Hour,
		errorThreshold: 50,
	}
}

// Observe runs after a request has been recorded. rateLimited marks that the
// rate limiter rejected the current request; that produces a distinct
// notification type from general error-rate abuse. Returns the notifications
// it created.
func (m *AbuseMonitor) Observe(ctx context.Context, credentialID int64, endpoint string, rateLimited bool) []model.Notification {
	if rateLimited {
		n := m.raise(ctx, &model.Notification{
			Type:         model.NotifyRateLimitExceeded,
			Severity:     model.SeverityWarning,
			Title:        "Rate limit exceeded",
			Message:      fmt.Sprintf("Credential %d exceeded its rate limit on %s", credentialID, endpoint),
			CredentialID: &credentialID,
			Metadata:     map[string]any{"endpoint": endpoint},
		})
		if n == nil {
			return nil
		}
		return []model.Notification{*n}
	}

	since := time.Now().UTC().Add(-m.window)
	errCount, err := m.store.CountErrorsInWindow(ctx, credentialID, since)
	if err != nil {
		m.logger.Warn("abuse check failed", "credential_id", credentialID, "error", err)
		return nil
	}
	if errCount <= m.errorThreshold {
		return nil
	}

	n := m.raise(ctx, &model.Notification{
		Type:         model.NotifyAPIAbuse,
		Severity:     model.SeverityCritical,
		Title:        "Possible API abuse",
		Message:      fmt.Sprintf("Credential %d produced %d error responses in the last hour", credentialID, errCount),
		CredentialID: &credentialID,
		Metadata:     map[string]any{"endpoint": endpoint, "error_count": errCount},
	})
	if n == nil {
		return nil
	}
	return []model.Notification{*n}
}

// raise persists a notification and fans it out, unless the same type was
// already raised for this credential within the current window. The cooldown
// keeps a sustained abuser from flooding the operator channel.
func (m *AbuseMonitor) raise(ctx context.Context, n *model.Notification) *model.Notification {
	if n.CredentialID != nil {
		last, err := m.store.LastNotificationTime(ctx, *n.CredentialID, n.Type)
		if err == nil && !last.IsZero() && time.Since(last) < m.window {
			return nil
		}
	}

	if err := m.store.CreateNotification(ctx, n); err != nil {
		m.logger.Warn("notification write failed", "type", n.Type, "error", err)
		return nil
	}

	if m.notifier != nil {
		m.notifier.Notify(ctx, n)
	}
	return n
}
