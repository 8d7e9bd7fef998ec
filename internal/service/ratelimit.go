package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// TierLimit is one rate-limit tier: the same sliding-window algorithm with
// different parameters.
type TierLimit struct {
	Window      time.Duration
	MaxRequests int
}

// DefaultTiers returns the built-in tier table.
func DefaultTiers() map[string]TierLimit {
	return map[string]TierLimit{
		model.TierStandard: {Window: time.Hour, MaxRequests: 100},
		model.TierElevated: {Window: time.Hour, MaxRequests: 1000},
		model.TierPremium:  {Window: time.Hour, MaxRequests: 10000},
	}
}

// LimitDecision is the outcome of a rate-limit check.
type LimitDecision struct {
	Allowed      bool
	CurrentCount int
	Limit        int
	Window       time.Duration
	ResetsAt     time.Time
}

// RateLimiter enforces per-credential sliding windows over the usage ledger.
// The window is measured relative to now, not aligned to calendar buckets,
// so there is no burst-at-boundary problem. Because the ledger is the source
// of truth, the decision survives process restarts.
type RateLimiter struct {
	store *store.Store
	tiers map[string]TierLimit
}

func NewRateLimiter(st *store.Store, tiers map[string]TierLimit) *RateLimiter {
	if tiers == nil {
		tiers = DefaultTiers()
	}
	return &RateLimiter{store: st, tiers: tiers}
}

// TierFor resolves the limit parameters for a credential's tier, falling
// back to standard for unknown tiers.
func (l *RateLimiter) TierFor(tier string) TierLimit {
	if t, ok := l.tiers[tier]; ok {
		return t
	}
	return l.tiers[model.TierStandard]
}

// CheckAndCount counts completed and rejected attempts for the credential in
// the trailing window and decides whether one more request is allowed. The
// count includes every ledger row regardless of outcome.
func (l *RateLimiter) CheckAndCount(ctx context.Context, credentialID int64, tier string) (LimitDecision, error) {
	lim := l.TierFor(tier)
	now := time.Now().UTC()
	since := now.Add(-lim.Window)

	count, err := l.store.CountInWindow(ctx, credentialID, since)
	if err != nil {
		return LimitDecision{}, fmt.Errorf("rate limit check: %w", err)
	}

	decision := LimitDecision{
		Allowed:      count < lim.MaxRequests,
		CurrentCount: count,
		Limit:        lim.MaxRequests,
		Window:       lim.Window,
		ResetsAt:     now.Add(lim.Window),
	}

	if !decision.Allowed {
		// The window opens again once the oldest in-window attempt slides out.
		oldest, err := l.store.OldestInWindow(ctx, credentialID, since)
		if err == nil && !oldest.IsZero() {
			decision.ResetsAt = oldest.Add(lim.Window)
		}
	}

	return decision, nil
}
