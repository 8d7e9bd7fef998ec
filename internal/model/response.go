package model

import "time"

// Stable machine-readable rejection codes returned to callers.
const (
	CodeMalformedCredential = "MalformedCredential"
	CodeUnknownCredential   = "UnknownOrInactiveCredential"
	CodeRateLimitExceeded   = "RateLimitExceeded"
	CodeBlacklisted         = "Blacklisted"
	CodeUpstreamTimeout     = "UpstreamTimeout"
	CodeUpstreamFailure     = "UpstreamFailure"
)

// ErrorResponse is the standard envelope for generic error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// RateLimitResponse is the body of a 429 rejection. It carries enough timing
// metadata for well-behaved clients to back off.
type RateLimitResponse struct {
	Error      string           `json:"error"`
	Message    string           `json:"message"`
	Details    RateLimitDetails `json:"details"`
	RetryAfter int64            `json:"retryAfter"` // seconds
}

// RateLimitDetails describes the window that rejected the request.
type RateLimitDetails struct {
	Limit     int       `json:"limit"`
	WindowMs  int64     `json:"windowMs"`
	Usage     int       `json:"usage"`
	ResetTime time.Time `json:"resetTime"`
}

// BlockedResponse is the body of a deny-list rejection. Scope tells the
// caller whether the block is global or one of their own entries.
type BlockedResponse struct {
	Error  string `json:"error"`
	Scope  string `json:"scope"`
	Reason string `json:"reason"`
}
