package model

import "time"

// CacheEntry is a stored result of an expensive external lookup. The payload
// is the JSON encoding of the computed value. An entry whose ExpiresAt is at
// or before the current time must be treated as a miss. Entries are upserted
// per key, never duplicated.
type CacheEntry struct {
	CacheKey  string    `json:"cache_key" db:"cache_key"`
	Payload   []byte    `json:"payload" db:"payload"`
	CachedAt  time.Time `json:"cached_at" db:"cached_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the entry is stale at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
