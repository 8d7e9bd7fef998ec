package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// storeBackend persists cache entries in the SQL store. Expiry is enforced
// on read by the store.
type storeBackend struct {
	store *store.Store
}

// NewStoreBackend returns a Backend over the shared SQL store.
func NewStoreBackend(st *store.Store) Backend {
	return &storeBackend{store: st}
}

func (b *storeBackend) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	entry, err := b.store.GetCacheEntry(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func (b *storeBackend) Put(ctx context.Context, entry *model.CacheEntry, _ time.Duration) error {
	return b.store.UpsertCacheEntry(ctx, entry)
}

// redisBackend keeps cache entries in Redis with native TTL expiry. The
// entry envelope is stored as JSON so the cached-at timestamp survives.
type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend returns a Backend over a Redis connection.
func NewRedisBackend(client *redis.Client) Backend {
	return &redisBackend{client: client}
}

func (b *redisBackend) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode redis cache entry: %w", err)
	}
	return &entry, nil
}

func (b *redisBackend) Put(ctx context.Context, entry *model.CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode redis cache entry: %w", err)
	}
	if err := b.client.Set(ctx, entry.CacheKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
