package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// Backend is the storage behind the cache-aside engine. Get returns
// (nil, nil) on a miss; expired entries are misses. Put overwrites any
// existing entry for the key.
type Backend interface {
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	Put(ctx context.Context, entry *model.CacheEntry, ttl time.Duration) error
}

// Gateway is the generic cache-aside engine shared by every cache kind
// (carrier directory, pricing, ISP lookups, synthesized voice). Kinds differ
// only in TTL and compute function.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
}

func NewGateway(backend Backend, logger *slog.Logger) *Gateway {
	return &Gateway{backend: backend, logger: logger}
}

// GetOrCompute returns the cached value for key if present and fresh,
// otherwise invokes compute, stores the result with the given TTL, and
// returns it. Failures from compute propagate and are never cached. A
// failing cache store degrades to computing every time rather than failing
// the request.
//
// Concurrent calls for the same key may both miss and both compute; the
// upsert is last-write-wins, which is acceptable because compute is expected
// to produce equivalent values.
func GetOrCompute[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	entry, err := g.backend.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cache read failed", "key", key, "error", err)
	} else if entry != nil {
		var v T
		if err := json.Unmarshal(entry.Payload, &v); err == nil {
			return v, true, nil
		}
		// Undecodable payload (e.g. a value shape change) is a miss.
		g.logger.Warn("cache payload undecodable", "key", key)
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, false, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return zero, false, fmt.Errorf("encode cache payload: %w", err)
	}

	now := time.Now().UTC()
	put := &model.CacheEntry{
		CacheKey:  key,
		Payload:   payload,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := g.backend.Put(ctx, put, ttl); err != nil {
		g.logger.Warn("cache write failed", "key", key, "error", err)
	}

	return v, false, nil
}
