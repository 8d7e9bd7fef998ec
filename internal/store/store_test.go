package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{}) // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func int64p(v int64) *int64 { return &v }

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func TestCredentialCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rawSecret := "dotm_0011223344556677"
	cred := &model.Credential{
		KeyHash:   HashSecret(rawSecret),
		KeyPrefix: rawSecret[:13],
		Label:     "mobile app",
		Tier:      model.TierStandard,
		IsActive:  true,
	}
	if err := s.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if cred.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetCredentialByHash(ctx, HashSecret(rawSecret))
	if err != nil {
		t.Fatalf("GetCredentialByHash: %v", err)
	}
	if got.Label != "mobile app" {
		t.Errorf("got label %q, want %q", got.Label, "mobile app")
	}
	if got.Tier != model.TierStandard {
		t.Errorf("got tier %q, want %q", got.Tier, model.TierStandard)
	}

	list, err := s.ListCredentials(ctx)
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d credentials, want 1", len(list))
	}

	// Touch increments use_count and sets last_used.
	if err := s.TouchCredential(ctx, cred.ID); err != nil {
		t.Fatalf("TouchCredential: %v", err)
	}
	if err := s.TouchCredential(ctx, cred.ID); err != nil {
		t.Fatalf("TouchCredential: %v", err)
	}
	got2, _ := s.GetCredential(ctx, cred.ID)
	if got2.UseCount != 2 {
		t.Errorf("got use_count %d, want 2", got2.UseCount)
	}
	if got2.LastUsed == nil {
		t.Error("expected last_used to be set after touch")
	}

	if err := s.UpdateCredentialTier(ctx, cred.ID, model.TierPremium); err != nil {
		t.Fatalf("UpdateCredentialTier: %v", err)
	}
	got3, _ := s.GetCredential(ctx, cred.ID)
	if got3.Tier != model.TierPremium {
		t.Errorf("got tier %q, want %q", got3.Tier, model.TierPremium)
	}

	if err := s.DeactivateCredential(ctx, cred.ID); err != nil {
		t.Fatalf("DeactivateCredential: %v", err)
	}
	got4, err := s.GetCredentialByHash(ctx, HashSecret(rawSecret))
	if err != nil {
		t.Fatalf("GetCredentialByHash after deactivate: %v", err)
	}
	if got4.IsActive {
		t.Error("expected credential to be inactive after deactivate")
	}
}

func TestDeactivateCredentialNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeactivateCredential(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHashSecretDeterministic(t *testing.T) {
	a := HashSecret("dotm_abc")
	b := HashSecret("dotm_abc")
	if a != b {
		t.Errorf("same input hashed differently: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("got hash length %d, want 64 hex chars", len(a))
	}
	if a == HashSecret("dotm_abd") {
		t.Error("different inputs produced the same hash")
	}
}

// ---------------------------------------------------------------------------
// Usage ledger
// ---------------------------------------------------------------------------

func seedCredential(t *testing.T, s *Store) *model.Credential {
	t.Helper()
	cred := &model.Credential{
		KeyHash:   HashSecret("dotm_" + t.Name()),
		KeyPrefix: "dotm_seed",
		Tier:      model.TierStandard,
		IsActive:  true,
	}
	if err := s.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return cred
}

func TestUsageWindowCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	now := time.Now().UTC()
	stamps := []struct {
		at     time.Time
		status int
	}{
		{now.Add(-2 * time.Hour), 200}, // outside window
		{now.Add(-30 * time.Minute), 200},
		{now.Add(-20 * time.Minute), 429},
		{now.Add(-10 * time.Minute), 500},
	}
	for _, st := range stamps {
		rec := &model.UsageRecord{
			CredentialID: int64p(cred.ID),
			Endpoint:     "/api/v1/carriers",
			Method:       "GET",
			OriginAddr:   "203.0.113.7",
			StatusCode:   st.status,
			CreatedAt:    st.at,
		}
		if err := s.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	since := now.Add(-time.Hour)

	count, err := s.CountInWindow(ctx, cred.ID, since)
	if err != nil {
		t.Fatalf("CountInWindow: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d in window, want 3", count)
	}

	errCount, err := s.CountErrorsInWindow(ctx, cred.ID, since)
	if err != nil {
		t.Fatalf("CountErrorsInWindow: %v", err)
	}
	if errCount != 2 {
		t.Errorf("got %d errors in window, want 2", errCount)
	}

	oldest, err := s.OldestInWindow(ctx, cred.ID, since)
	if err != nil {
		t.Fatalf("OldestInWindow: %v", err)
	}
	want := now.Add(-30 * time.Minute)
	if oldest.Sub(want) > time.Second || want.Sub(oldest) > time.Second {
		t.Errorf("got oldest %v, want about %v", oldest, want)
	}
}

func TestOldestInWindowEmpty(t *testing.T) {
	s := newTestStore(t)
	cred := seedCredential(t, s)

	oldest, err := s.OldestInWindow(context.Background(), cred.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("OldestInWindow: %v", err)
	}
	if !oldest.IsZero() {
		t.Errorf("expected zero time for empty window, got %v", oldest)
	}
}

func TestListRecentUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	for i := 0; i < 5; i++ {
		rec := &model.UsageRecord{
			CredentialID: int64p(cred.ID),
			Endpoint:     "/api/v1/pricing",
			Method:       "GET",
			OriginAddr:   "203.0.113.7",
			StatusCode:   200,
			CreatedAt:    time.Now().UTC().Add(time.Duration(-i) * time.Minute),
		}
		if err := s.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	list, err := s.ListRecentUsage(ctx, cred.ID, 3)
	if err != nil {
		t.Fatalf("ListRecentUsage: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d records, want 3", len(list))
	}
	// Newest first.
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Error("expected records ordered newest first")
	}

	all, err := s.ListRecentUsage(ctx, 0, 100)
	if err != nil {
		t.Fatalf("ListRecentUsage all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("got %d records for all credentials, want 5", len(all))
	}
}

func TestSummarizeUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	now := time.Now().UTC()
	for _, rec := range []*model.UsageRecord{
		{CredentialID: int64p(cred.ID), Endpoint: "/api/v1/carriers", Method: "GET", OriginAddr: "a", StatusCode: 200, CreatedAt: now},
		{CredentialID: int64p(cred.ID), Endpoint: "/api/v1/carriers", Method: "GET", OriginAddr: "a", StatusCode: 500, CreatedAt: now},
		{CredentialID: int64p(cred.ID), Endpoint: "/api/v1/carriers", Method: "GET", OriginAddr: "a", StatusCode: 429, RateLimited: true, CreatedAt: now},
	} {
		if err := s.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	summary, err := s.SummarizeUsage(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SummarizeUsage: %v", err)
	}
	if len(summary) != 1 {
		t.Fatalf("got %d summary rows, want 1", len(summary))
	}
	row := summary[0]
	if row.Requests != 3 {
		t.Errorf("got %d requests, want 3", row.Requests)
	}
	if row.Errors != 2 {
		t.Errorf("got %d errors, want 2", row.Errors)
	}
	if row.RateLimited != 1 {
		t.Errorf("got %d rate limited, want 1", row.RateLimited)
	}
}

// ---------------------------------------------------------------------------
// Cache entries
// ---------------------------------------------------------------------------

func TestCacheEntryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &model.CacheEntry{
		CacheKey:  "carriers:abc123",
		Payload:   []byte(`{"carriers":[]}`),
		CachedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := s.UpsertCacheEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertCacheEntry: %v", err)
	}

	got, err := s.GetCacheEntry(ctx, "carriers:abc123")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if string(got.Payload) != `{"carriers":[]}` {
		t.Errorf("got payload %q", got.Payload)
	}

	// Upsert replaces the stored payload for the same key.
	entry.Payload = []byte(`{"carriers":["att"]}`)
	if err := s.UpsertCacheEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertCacheEntry overwrite: %v", err)
	}
	got2, _ := s.GetCacheEntry(ctx, "carriers:abc123")
	if string(got2.Payload) != `{"carriers":["att"]}` {
		t.Errorf("got payload %q after overwrite", got2.Payload)
	}

	_, err = s.GetCacheEntry(ctx, "missing-key")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestCacheEntryExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &model.CacheEntry{
		CacheKey:  "pricing:stale",
		Payload:   []byte(`{}`),
		CachedAt:  time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := s.UpsertCacheEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertCacheEntry: %v", err)
	}

	// Expired entries read as misses.
	_, err := s.GetCacheEntry(ctx, "pricing:stale")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired entry, got %v", err)
	}
}

func TestPurgeExpiredCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, e := range []*model.CacheEntry{
		{CacheKey: "live", Payload: []byte(`1`), CachedAt: now, ExpiresAt: now.Add(time.Hour)},
		{CacheKey: "stale-1", Payload: []byte(`2`), CachedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{CacheKey: "stale-2", Payload: []byte(`3`), CachedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Minute)},
	} {
		if err := s.UpsertCacheEntry(ctx, e); err != nil {
			t.Fatalf("UpsertCacheEntry: %v", err)
		}
	}

	n, err := s.PurgeExpiredCache(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredCache: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d entries, want 2", n)
	}
	if _, err := s.GetCacheEntry(ctx, "live"); err != nil {
		t.Errorf("live entry should survive purge: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Deny list
// ---------------------------------------------------------------------------

func TestDenyEntryScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	global := &model.DenyEntry{TargetID: "356938035643809", Reason: "reported stolen"}
	if err := s.CreateDenyEntry(ctx, global); err != nil {
		t.Fatalf("CreateDenyEntry global: %v", err)
	}
	scoped := &model.DenyEntry{TargetID: "490154203237518", Reason: "customer opt-out", CredentialID: int64p(cred.ID)}
	if err := s.CreateDenyEntry(ctx, scoped); err != nil {
		t.Fatalf("CreateDenyEntry scoped: %v", err)
	}

	// Global entry is visible globally, not as a scoped entry.
	if _, err := s.GetGlobalDenyEntry(ctx, "356938035643809"); err != nil {
		t.Errorf("GetGlobalDenyEntry: %v", err)
	}
	if _, err := s.GetScopedDenyEntry(ctx, "356938035643809", cred.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("global entry leaked into scoped lookup: %v", err)
	}

	// Scoped entry is invisible globally and to other credentials.
	if _, err := s.GetGlobalDenyEntry(ctx, "490154203237518"); !errors.Is(err, ErrNotFound) {
		t.Errorf("scoped entry leaked into global lookup: %v", err)
	}
	if _, err := s.GetScopedDenyEntry(ctx, "490154203237518", cred.ID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("scoped entry leaked to another credential: %v", err)
	}
	if _, err := s.GetScopedDenyEntry(ctx, "490154203237518", cred.ID); err != nil {
		t.Errorf("GetScopedDenyEntry: %v", err)
	}
}

func TestDenyEntryConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &model.DenyEntry{TargetID: "356938035643809", Reason: "first"}
	if err := s.CreateDenyEntry(ctx, e); err != nil {
		t.Fatalf("CreateDenyEntry: %v", err)
	}

	dup := &model.DenyEntry{TargetID: "356938035643809", Reason: "second"}
	if err := s.CreateDenyEntry(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate, got %v", err)
	}

	// After removal the target can be blocked again.
	if err := s.RemoveDenyEntry(ctx, "356938035643809", nil); err != nil {
		t.Fatalf("RemoveDenyEntry: %v", err)
	}
	if err := s.CreateDenyEntry(ctx, dup); err != nil {
		t.Errorf("re-adding after removal should succeed: %v", err)
	}
}

func TestDenyEntryConcurrentAdds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Interleaved adds for the same target and scope must produce exactly
	// one active entry. The unique index catches whatever slips past the
	// existence pre-check.
	const workers = 16
	var created atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := &model.DenyEntry{TargetID: "356938035643809", Reason: "reported stolen"}
			err := s.CreateDenyEntry(ctx, e)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("CreateDenyEntry: %v", err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("got %d successful adds, want 1", created.Load())
	}
	list, err := s.ListDenyEntries(ctx)
	if err != nil {
		t.Fatalf("ListDenyEntries: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d active entries, want 1", len(list))
	}
}

func TestRemoveDenyEntryNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RemoveDenyEntry(context.Background(), "000000000000000", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	n := &model.Notification{
		Type:         model.NotifyAPIAbuse,
		Severity:     model.SeverityWarning,
		Title:        "Suspicious traffic",
		Message:      "50 errors in the last hour",
		CredentialID: int64p(cred.ID),
		Metadata:     map[string]any{"error_count": 50},
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	unread, err := s.ListNotifications(ctx, true, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("got %d unread, want 1", len(unread))
	}
	got := unread[0]
	if got.Type != model.NotifyAPIAbuse {
		t.Errorf("got type %q, want %q", got.Type, model.NotifyAPIAbuse)
	}
	if got.Metadata["error_count"] != float64(50) {
		t.Errorf("metadata did not round-trip: %v", got.Metadata)
	}

	if err := s.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread2, _ := s.ListNotifications(ctx, true, 10)
	if len(unread2) != 0 {
		t.Errorf("got %d unread after mark read, want 0", len(unread2))
	}
	all, _ := s.ListNotifications(ctx, false, 10)
	if len(all) != 1 {
		t.Errorf("got %d total, want 1", len(all))
	}
}

func TestLastNotificationTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cred := seedCredential(t, s)

	// No notifications yet.
	ts, err := s.LastNotificationTime(ctx, cred.ID, model.NotifyAPIAbuse)
	if err != nil {
		t.Fatalf("LastNotificationTime: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time, got %v", ts)
	}

	n := &model.Notification{
		Type:         model.NotifyAPIAbuse,
		Severity:     model.SeverityWarning,
		Title:        "t",
		Message:      "m",
		CredentialID: int64p(cred.ID),
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	ts2, err := s.LastNotificationTime(ctx, cred.ID, model.NotifyAPIAbuse)
	if err != nil {
		t.Fatalf("LastNotificationTime: %v", err)
	}
	if ts2.IsZero() {
		t.Error("expected non-zero time after create")
	}

	// Other types do not count.
	ts3, _ := s.LastNotificationTime(ctx, cred.ID, model.NotifyRateLimitExceeded)
	if !ts3.IsZero() {
		t.Errorf("expected zero time for other type, got %v", ts3)
	}
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

func TestAdminAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	has, err := s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin: %v", err)
	}
	if has {
		t.Error("fresh store should have no admins")
	}

	a := &model.Admin{
		Email:        "ops@example.com",
		PasswordHash: "$2a$10$fakehashfortesting",
		Name:         "Ops",
		IsActive:     true,
	}
	if err := s.CreateAdmin(ctx, a); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	got, err := s.GetAdminByEmail(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.Name != "Ops" {
		t.Errorf("got name %q, want %q", got.Name, "Ops")
	}
	if got.LastLoginAt != nil {
		t.Error("expected nil last_login_at before first login")
	}

	if err := s.TouchAdminLogin(ctx, a.ID); err != nil {
		t.Fatalf("TouchAdminLogin: %v", err)
	}
	got2, _ := s.GetAdminByEmail(ctx, "ops@example.com")
	if got2.LastLoginAt == nil {
		t.Error("expected last_login_at after login")
	}

	has2, _ := s.HasAnyAdmin(ctx)
	if !has2 {
		t.Error("HasAnyAdmin should report true")
	}

	list, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d admins, want 1", len(list))
	}

	_, err = s.GetAdminByEmail(ctx, "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
