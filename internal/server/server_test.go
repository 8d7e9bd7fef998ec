package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/cache"
	"github.com/dataontap/DeviceInsights-sub000/internal/handler"
	"github.com/dataontap/DeviceInsights-sub000/internal/lookup"
	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
	"github.com/dataontap/DeviceInsights-sub000/internal/usage"
)

// fakeProvider answers every lookup interface with static data.
type fakeProvider struct{}

func (fakeProvider) LookupCarriers(ctx context.Context, location string) ([]lookup.Carrier, error) {
	return []lookup.Carrier{
		{Name: "AT&T", Country: "us", Technologies: []string{"LTE", "5G NR"}},
	}, nil
}

func (fakeProvider) LookupPricing(ctx context.Context, location string) ([]lookup.PricingPlan, error) {
	return []lookup.PricingPlan{
		{Carrier: "AT&T", Name: "Unlimited", Currency: "USD", Monthly: 75, Unlimited: true},
	}, nil
}

func (fakeProvider) FetchIsp(ctx context.Context, ip string) (*lookup.IspInfo, error) {
	return &lookup.IspInfo{IP: ip, ISP: "Example ISP", Country: "US"}, nil
}

func (fakeProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return []byte("mp3"), nil
}

type testEnv struct {
	store  *store.Store
	server *Server
	secret string
	cred   *model.Credential
}

// newTestEnv builds a full server over an in-memory store with one issued
// credential. The standard tier is capped at 3 requests so limit behavior is
// testable without a hundred requests.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.Open(store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authSvc := service.NewAuthService(s, "test-jwt-secret", logger)
	limiter := service.NewRateLimiter(s, map[string]service.TierLimit{
		model.TierStandard: {Window: time.Hour, MaxRequests: 3},
		model.TierPremium:  {Window: time.Hour, MaxRequests: 10000},
	})
	denyList := service.NewDenyList(s)
	monitor := service.NewAbuseMonitor(s, nil, logger)

	recorder := usage.NewRecorder(s, logger, 256)
	recorder.Start()
	t.Cleanup(recorder.Shutdown)

	p := fakeProvider{}
	gw := cache.NewGateway(cache.NewStoreBackend(s), logger)
	lookupSvc := lookup.NewService(gw, p, p, p, p, lookup.DefaultTTLs(), logger)

	cfg := DefaultConfig()
	cfg.IPRequestsPerMinute = 10000 // keep the address limiter out of the way

	srv := New(cfg, Deps{
		Store:     s,
		AuthSvc:   authSvc,
		Limiter:   limiter,
		DenyList:  denyList,
		Monitor:   monitor,
		Recorder:  recorder,
		LookupSvc: lookupSvc,
		Logger:    logger,
	})

	secret, cred, err := handler.GenerateCredential("test", model.TierStandard)
	if err != nil {
		t.Fatalf("GenerateCredential: %v", err)
	}
	if err := s.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	return &testEnv{store: s, server: srv, secret: secret, cred: cred}
}

// do issues a request against the in-process router.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	if w := e.do("GET", "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("healthz: got %d, want 200", w.Code)
	}
	if w := e.do("GET", "/readyz", "", nil); w.Code != http.StatusOK {
		t.Errorf("readyz: got %d, want 200", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Gateway: authentication
// ---------------------------------------------------------------------------

func TestGatewayRejectsMissingCredential(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/v1/carriers?location=us", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
	var resp model.ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Error.Code != model.CodeMalformedCredential {
		t.Errorf("got code %q, want %q", resp.Error.Code, model.CodeMalformedCredential)
	}
}

func TestGatewayRejectsUnknownCredential(t *testing.T) {
	e := newTestEnv(t)

	// Well-formed but never issued.
	fake := service.SecretPrefix + strings.Repeat("ab", 32)
	w := e.do("GET", "/api/v1/carriers?location=us", fake, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
	var resp model.ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Error.Code != model.CodeUnknownCredential {
		t.Errorf("got code %q, want %q", resp.Error.Code, model.CodeUnknownCredential)
	}
}

func TestGatewayAcceptsValidCredential(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/v1/carriers?location=us", e.secret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Carriers []lookup.Carrier `json:"carriers"`
		Cached   bool             `json:"cached"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Carriers) != 1 {
		t.Errorf("got %d carriers, want 1", len(resp.Carriers))
	}
	if resp.Cached {
		t.Error("first lookup should not be cached")
	}
}

func TestGatewayAcceptsAPIKeyHeader(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/carriers?location=us", nil)
	req.Header.Set("X-API-Key", e.secret)
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("got %d, want 200", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Gateway: deny list
// ---------------------------------------------------------------------------

func TestGatewayGlobalDeny(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	deny := service.NewDenyList(e.store)
	if _, err := deny.Add(ctx, "000000000000000", "test-range identifier", nil); err != nil {
		t.Fatalf("deny.Add: %v", err)
	}

	// Globally blocked targets are rejected even before authentication.
	w := e.do("GET", "/api/v1/device/000000000000000/compatibility?location=us", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", w.Code)
	}
	var resp model.BlockedResponse
	decodeBody(t, w, &resp)
	if resp.Error != model.CodeBlacklisted {
		t.Errorf("got error %q, want %q", resp.Error, model.CodeBlacklisted)
	}
	if resp.Scope != model.DenyScopeGlobal {
		t.Errorf("got scope %q, want %q", resp.Scope, model.DenyScopeGlobal)
	}

	// Same with a valid credential.
	w2 := e.do("GET", "/api/v1/device/000000000000000/compatibility?location=us", e.secret, nil)
	if w2.Code != http.StatusForbidden {
		t.Errorf("got %d with credential, want 403", w2.Code)
	}
}

func TestGatewayScopedDeny(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	const imei = "490154203237518"
	deny := service.NewDenyList(e.store)
	if _, err := deny.Add(ctx, imei, "customer opt-out", &e.cred.ID); err != nil {
		t.Fatalf("deny.Add: %v", err)
	}

	w := e.do("GET", "/api/v1/device/"+imei+"/compatibility?location=us", e.secret, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403: %s", w.Code, w.Body.String())
	}
	var resp model.BlockedResponse
	decodeBody(t, w, &resp)
	if resp.Scope != model.DenyScopeLocal {
		t.Errorf("got scope %q, want %q", resp.Scope, model.DenyScopeLocal)
	}
	if !strings.HasPrefix(resp.Reason, "blocked by your own deny list") {
		t.Errorf("scoped rejection should say the block is the caller's own, got %q", resp.Reason)
	}

	// Another credential is unaffected by the scoped entry.
	otherSecret, otherCred, err := handler.GenerateCredential("other", model.TierStandard)
	if err != nil {
		t.Fatalf("GenerateCredential: %v", err)
	}
	if err := e.store.CreateCredential(ctx, otherCred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	w2 := e.do("GET", "/api/v1/device/"+imei+"/compatibility?location=us", otherSecret, nil)
	if w2.Code != http.StatusOK {
		t.Errorf("got %d for other credential, want 200: %s", w2.Code, w2.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Gateway: rate limiting
// ---------------------------------------------------------------------------

func TestGatewayRateLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Fill the window (standard tier is capped at 3 in this env).
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := &model.UsageRecord{
			CredentialID: &e.cred.ID,
			Endpoint:     "/api/v1/carriers",
			Method:       "GET",
			OriginAddr:   "192.0.2.1",
			StatusCode:   200,
			CreatedAt:    now.Add(time.Duration(-i) * time.Minute),
		}
		if err := e.store.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	w := e.do("GET", "/api/v1/carriers?location=us", e.secret, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry a Retry-After header")
	}

	var resp model.RateLimitResponse
	decodeBody(t, w, &resp)
	if resp.Error != model.CodeRateLimitExceeded {
		t.Errorf("got error %q, want %q", resp.Error, model.CodeRateLimitExceeded)
	}
	if resp.Details.Limit != 3 {
		t.Errorf("got limit %d, want 3", resp.Details.Limit)
	}
	if resp.Details.Usage != 3 {
		t.Errorf("got usage %d, want 3", resp.Details.Usage)
	}
	if resp.Details.WindowMs != time.Hour.Milliseconds() {
		t.Errorf("got windowMs %d, want %d", resp.Details.WindowMs, time.Hour.Milliseconds())
	}
	if resp.RetryAfter <= 0 {
		t.Errorf("got retryAfter %d, want > 0", resp.RetryAfter)
	}
	if resp.Details.ResetTime.Before(now) {
		t.Errorf("resetTime %v should be in the future", resp.Details.ResetTime)
	}
}

func TestGatewayRateLimitPerCredential(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Exhaust the first credential's window.
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := &model.UsageRecord{
			CredentialID: &e.cred.ID,
			Endpoint:     "/api/v1/carriers",
			Method:       "GET",
			OriginAddr:   "192.0.2.1",
			StatusCode:   200,
			CreatedAt:    now,
		}
		if err := e.store.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	if w := e.do("GET", "/api/v1/carriers?location=us", e.secret, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted credential: got %d, want 429", w.Code)
	}

	// A different credential still has a fresh window.
	otherSecret, otherCred, err := handler.GenerateCredential("other", model.TierStandard)
	if err != nil {
		t.Fatalf("GenerateCredential: %v", err)
	}
	if err := e.store.CreateCredential(ctx, otherCred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if w := e.do("GET", "/api/v1/carriers?location=us", otherSecret, nil); w.Code != http.StatusOK {
		t.Errorf("fresh credential: got %d, want 200", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Lookup endpoints through the gateway
// ---------------------------------------------------------------------------

func TestDeviceCompatibility(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/v1/device/490154203237518/compatibility?location=USA", e.secret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}

	var result lookup.CompatibilityResult
	decodeBody(t, w, &result)
	if result.DeviceID != "490154203237518" {
		t.Errorf("got device_id %q", result.DeviceID)
	}
	if result.Location != "us" {
		t.Errorf("got location %q, want normalized %q", result.Location, "us")
	}
	if result.Source != lookup.SourceDirectory {
		t.Errorf("got source %q", result.Source)
	}
	if len(result.Carriers) != 1 || !result.Carriers[0].Supported {
		t.Errorf("got carriers %+v", result.Carriers)
	}
	if result.Cached {
		t.Error("first check should not be cached")
	}

	// Second check for the same location is served from cache.
	w2 := e.do("GET", "/api/v1/device/490154203237518/compatibility?location=us", e.secret, nil)
	var result2 lookup.CompatibilityResult
	decodeBody(t, w2, &result2)
	if !result2.Cached {
		t.Error("second check should be served from cache")
	}
}

func TestDeviceCompatibilityInvalidIMEI(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/v1/device/12345/compatibility?location=us", e.secret, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", w.Code)
	}
}

func TestIspEndpoint(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/v1/network/isp?ip=8.8.8.8", e.secret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}

	if w := e.do("GET", "/api/v1/network/isp?ip=not-an-ip", e.secret, nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid ip: got %d, want 400", w.Code)
	}
}

func TestVoiceEndpoint(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/v1/voice", e.secret, map[string]string{
		"text": "Your device is compatible.", "voice": "narrator",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ContentType string `json:"content_type"`
		Cached      bool   `json:"cached"`
	}
	decodeBody(t, w, &resp)
	if resp.ContentType != "audio/mpeg" {
		t.Errorf("got content type %q", resp.ContentType)
	}

	if w := e.do("POST", "/api/v1/voice", e.secret, map[string]string{"voice": "narrator"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing text: got %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Operator API
// ---------------------------------------------------------------------------

func (e *testEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	hash, err := service.HashAdminPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashAdminPassword: %v", err)
	}
	admin := &model.Admin{Email: "ops@example.com", PasswordHash: hash, Name: "Ops", IsActive: true}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	w := e.do("POST", "/api/v1/system/admin/session", "", map[string]string{
		"email": "ops@example.com", "password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionToken string `json:"session_token"`
	}
	decodeBody(t, w, &resp)
	if resp.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	return resp.SessionToken
}

func TestAdminLoginAndSession(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedAdmin(t)

	// Wrong password.
	if w := e.do("POST", "/api/v1/system/admin/session", "", map[string]string{
		"email": "ops@example.com", "password": "wrong",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", w.Code)
	}

	// Session token grants access to the operator API.
	if w := e.do("GET", "/api/v1/system/credential", token, nil); w.Code != http.StatusOK {
		t.Errorf("list credentials: got %d, want 200", w.Code)
	}

	// No token, garbage token, and a lookup credential are all rejected.
	if w := e.do("GET", "/api/v1/system/credential", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", w.Code)
	}
	if w := e.do("GET", "/api/v1/system/credential", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d, want 401", w.Code)
	}
	if w := e.do("GET", "/api/v1/system/credential", e.secret, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("lookup credential on operator API: got %d, want 401", w.Code)
	}
}

func TestAdminCredentialManagement(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedAdmin(t)

	// Create a credential through the API.
	w := e.do("POST", "/api/v1/system/credential", token, map[string]string{
		"label": "partner", "tier": model.TierElevated,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Credential model.Credential `json:"credential"`
		Secret     string           `json:"secret"`
	}
	decodeBody(t, w, &created)
	if !strings.HasPrefix(created.Secret, service.SecretPrefix) {
		t.Errorf("secret %q should carry the issuer prefix", created.Secret)
	}
	if created.Credential.Tier != model.TierElevated {
		t.Errorf("got tier %q", created.Credential.Tier)
	}

	// The new secret authenticates.
	if w := e.do("GET", "/api/v1/carriers?location=us", created.Secret, nil); w.Code != http.StatusOK {
		t.Errorf("new credential: got %d, want 200", w.Code)
	}

	// Revoke it; it stops working.
	path := fmt.Sprintf("/api/v1/system/credential/%d", created.Credential.ID)
	if w := e.do("DELETE", path, token, nil); w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Fatalf("revoke: got %d: %s", w.Code, w.Body.String())
	}
	if w := e.do("GET", "/api/v1/carriers?location=us", created.Secret, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked credential: got %d, want 401", w.Code)
	}
}

func TestAdminDenyListManagement(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedAdmin(t)

	w := e.do("POST", "/api/v1/system/denylist", token, map[string]any{
		"target_id": "356938035643809", "reason": "reported stolen",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d: %s", w.Code, w.Body.String())
	}

	// The block takes effect on the public API.
	if w := e.do("GET", "/api/v1/device/356938035643809/compatibility?location=us", e.secret, nil); w.Code != http.StatusForbidden {
		t.Errorf("blocked device: got %d, want 403", w.Code)
	}

	// Remove restores access.
	if w := e.do("DELETE", "/api/v1/system/denylist/356938035643809", token, nil); w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Fatalf("remove: got %d: %s", w.Code, w.Body.String())
	}
	if w := e.do("GET", "/api/v1/device/356938035643809/compatibility?location=us", e.secret, nil); w.Code != http.StatusOK {
		t.Errorf("unblocked device: got %d, want 200", w.Code)
	}
}

func TestAdminNotifications(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedAdmin(t)
	ctx := context.Background()

	n := &model.Notification{
		Type:     model.NotifyAPIAbuse,
		Severity: model.SeverityCritical,
		Title:    "Possible API abuse",
		Message:  "60 errors in the last hour",
	}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	w := e.do("GET", "/api/v1/system/notification?unread=true", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Notifications []model.Notification `json:"notifications"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(resp.Notifications))
	}

	path := fmt.Sprintf("/api/v1/system/notification/%d/read", n.ID)
	if w := e.do("PUT", path, token, nil); w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Fatalf("mark read: got %d: %s", w.Code, w.Body.String())
	}

	w2 := e.do("GET", "/api/v1/system/notification?unread=true", token, nil)
	var resp2 struct {
		Notifications []model.Notification `json:"notifications"`
	}
	decodeBody(t, w2, &resp2)
	if len(resp2.Notifications) != 0 {
		t.Errorf("got %d unread after mark read, want 0", len(resp2.Notifications))
	}
}

func TestAdminUsageReporting(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedAdmin(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := &model.UsageRecord{
			CredentialID: &e.cred.ID,
			Endpoint:     "/api/v1/carriers",
			Method:       "GET",
			OriginAddr:   "192.0.2.1",
			StatusCode:   200,
		}
		if err := e.store.InsertUsageRecord(ctx, rec); err != nil {
			t.Fatalf("InsertUsageRecord: %v", err)
		}
	}

	if w := e.do("GET", "/api/v1/system/usage", token, nil); w.Code != http.StatusOK {
		t.Errorf("usage: got %d: %s", w.Code, w.Body.String())
	}
	if w := e.do("GET", "/api/v1/system/usage/summary", token, nil); w.Code != http.StatusOK {
		t.Errorf("usage summary: got %d: %s", w.Code, w.Body.String())
	}
}
