package model

import "time"

// Credential represents an API credential used to authenticate public lookup
// requests. The raw secret is never stored; only a SHA-256 hash and a short
// prefix for identification are persisted. Credentials are deactivated, never
// physically deleted.
type Credential struct {
	ID        int64      `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"`
	Label     string     `json:"label" db:"label"`
	Tier      string     `json:"tier" db:"tier"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	UseCount  int64      `json:"use_count" db:"use_count"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}

// Rate-limit tiers. Same sliding-window algorithm, different parameters;
// the tier on a credential selects the (window, max) pair from config.
const (
	TierStandard = "standard"
	TierElevated = "elevated"
	TierPremium  = "premium"
)

// Admin is an operator account for the management API and CLI. Passwords are
// stored as bcrypt hashes.
type Admin struct {
	ID           int64      `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Name         string     `json:"name" db:"name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
