package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// GetCacheEntry returns the live entry for a key. An entry whose expiry has
// passed is reported as a miss and lazily purged.
func (s *Store) GetCacheEntry(ctx context.Context, cacheKey string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	err := s.db.GetContext(ctx, &e,
		s.rebind("SELECT * FROM cache_entries WHERE cache_key = ?"), cacheKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	if e.Expired(time.Now().UTC()) {
		// Best effort: a failed purge just leaves the row for the next upsert.
		s.db.ExecContext(ctx, s.rebind("DELETE FROM cache_entries WHERE cache_key = ? AND expires_at <= ?"),
			cacheKey, time.Now().UTC())
		return nil, ErrNotFound
	}
	return &e, nil
}

// UpsertCacheEntry writes an entry, overwriting any existing row for the
// same key. Last write wins under concurrent recomputation.
func (s *Store) UpsertCacheEntry(ctx context.Context, e *model.CacheEntry) error {
	const q = `INSERT INTO cache_entries (cache_key, payload, cached_at, expires_at)
		VALUES (:cache_key, :payload, :cached_at, :expires_at)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`

	if _, err := s.db.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// PurgeExpiredCache removes all entries past their expiry. Returns the number
// of rows removed.
func (s *Store) PurgeExpiredCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM cache_entries WHERE expires_at <= ?"), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
