package model

import "time"

// Deny-list scopes. A global entry blocks every caller; a local entry blocks
// only the credential that owns it and is invisible to everyone else.
const (
	DenyScopeGlobal = "global"
	DenyScopeLocal  = "local"
)

// DenyEntry blocks a target identifier (typically a device identifier) either
// globally or for a single credential. CredentialID is nil for global entries.
type DenyEntry struct {
	ID           int64     `json:"id" db:"id"`
	TargetID     string    `json:"target_id" db:"target_id"`
	Reason       string    `json:"reason" db:"reason"`
	CredentialID *int64    `json:"credential_id,omitempty" db:"credential_id"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Scope returns the scope label for the entry.
func (e *DenyEntry) Scope() string {
	if e.CredentialID == nil {
		return DenyScopeGlobal
	}
	return DenyScopeLocal
}
