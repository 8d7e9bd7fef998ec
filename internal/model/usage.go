package model

import "time"

// UsageRecord is one row in the usage ledger: a single completed or rejected
// request attempt. Records are immutable once written. CredentialID is nil
// for unauthenticated traffic, which is tracked by origin address instead.
type UsageRecord struct {
	ID            int64     `json:"id" db:"id"`
	CredentialID  *int64    `json:"credential_id,omitempty" db:"credential_id"`
	Endpoint      string    `json:"endpoint" db:"endpoint"`
	Method        string    `json:"method" db:"method"`
	OriginAddr    string    `json:"origin_addr" db:"origin_addr"`
	StatusCode    int       `json:"status_code" db:"status_code"`
	LatencyMs     float64   `json:"latency_ms" db:"latency_ms"`
	RateLimited   bool      `json:"rate_limited" db:"rate_limited"`
	RequestBytes  int64     `json:"request_bytes" db:"request_bytes"`
	ResponseBytes int64     `json:"response_bytes" db:"response_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// UsageSummary aggregates ledger rows for the operator API.
type UsageSummary struct {
	CredentialID *int64 `json:"credential_id,omitempty" db:"credential_id"`
	Day          string `json:"day" db:"day"`
	Requests     int64  `json:"requests" db:"requests"`
	Errors       int64  `json:"errors" db:"errors"`
	RateLimited  int64  `json:"rate_limited" db:"rate_limited"`
}
