package model

import "time"

// Notification types emitted by the abuse monitor.
const (
	NotifyAPIAbuse          = "api_abuse"
	NotifyRateLimitExceeded = "rate_limit_exceeded"
)

// Notification severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is an operator alert raised by the abuse monitor. It is
// advisory only: it never alters the response of the request that triggered
// it. Notifications are mutated only by marking them read.
type Notification struct {
	ID           int64          `json:"id" db:"id"`
	Type         string         `json:"type" db:"type"`
	Severity     string         `json:"severity" db:"severity"`
	Title        string         `json:"title" db:"title"`
	Message      string         `json:"message" db:"message"`
	CredentialID *int64         `json:"credential_id,omitempty" db:"credential_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IsRead       bool           `json:"is_read" db:"is_read"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
