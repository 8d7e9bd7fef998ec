package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/server/middleware"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/usage"
)

// TargetFunc extracts the deny-list target identifier (typically the device
// identifier) from a request. Return "" for endpoints without a target.
type TargetFunc func(*http.Request) string

// Gateway is the composed entry point every public request passes through:
// deny-list screening, credential authentication, sliding-window rate
// limiting, then the business handler, followed by best-effort usage
// recording and abuse observation. The pipeline is an explicit ordered list
// of steps; the first rejection is terminal.
type Gateway struct {
	auth     *service.AuthService
	limiter  *service.RateLimiter
	deny     *service.DenyList
	recorder *usage.Recorder
	monitor  *service.AbuseMonitor
	logger   *slog.Logger
}

func NewGateway(auth *service.AuthService, limiter *service.RateLimiter, deny *service.DenyList,
	recorder *usage.Recorder, monitor *service.AbuseMonitor, logger *slog.Logger) *Gateway {
	return &Gateway{
		auth:     auth,
		limiter:  limiter,
		deny:     deny,
		recorder: recorder,
		monitor:  monitor,
		logger:   logger,
	}
}

// requestState accumulates what the pipeline learns about one request.
type requestState struct {
	req        *http.Request
	target     string
	credential *model.Credential
}

// rejection is a terminal pipeline outcome.
type rejection struct {
	status      int
	body        any
	retryAfter  time.Duration
	rateLimited bool
}

type step func(ctx context.Context, st *requestState) (*rejection, error)

// Protect wraps a business handler in the full gateway pipeline. The target
// function feeds the deny-list steps; pass nil for endpoints without a
// deny-list target.
func (g *Gateway) Protect(target TargetFunc) func(http.Handler) http.Handler {
	steps := []step{
		g.stepGlobalDeny,
		g.stepAuthenticate,
		g.stepScopedDeny,
		g.stepRateLimit,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			st := &requestState{req: r}
			if target != nil {
				st.target = target(r)
			}

			for _, s := range steps {
				rej, err := s(r.Context(), st)
				if err != nil {
					g.logger.Error("gateway step failed", "path", r.URL.Path, "error", err)
					g.writeRejection(w, &rejection{
						status: http.StatusInternalServerError,
						body: model.ErrorResponse{Error: model.ErrorDetail{
							Code: "GatewayError", Message: "internal gateway error",
						}},
					})
					g.finish(st, http.StatusInternalServerError, 0, start, false)
					return
				}
				if rej != nil {
					g.writeRejection(w, rej)
					g.finish(st, rej.status, 0, start, rej.rateLimited)
					return
				}
			}

			// Handler outcome does not change the gateway's own success; the
			// ledger row is written either way.
			ww := middleware.NewStatusWriter(w)
			ctx := middleware.WithPrincipal(r.Context(), &middleware.Principal{
				Type:         "credential",
				CredentialID: st.credential.ID,
				Tier:         st.credential.Tier,
				Label:        st.credential.Label,
			})
			next.ServeHTTP(ww, r.WithContext(ctx))

			g.finish(st, ww.Status(), int64(ww.BytesWritten()), start, false)
		})
	}
}

func (g *Gateway) stepGlobalDeny(ctx context.Context, st *requestState) (*rejection, error) {
	if st.target == "" {
		return nil, nil
	}
	entry, err := g.deny.IsDenied(ctx, st.target, nil)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return denyRejection(entry), nil
}

func (g *Gateway) stepAuthenticate(ctx context.Context, st *requestState) (*rejection, error) {
	secret := middleware.BearerToken(st.req)
	if secret == "" {
		secret = st.req.Header.Get("X-API-Key")
	}

	cred, err := g.auth.AuthenticateCredential(ctx, secret)
	if err != nil {
		code := model.CodeUnknownCredential
		message := "Unknown or inactive credential"
		if err == service.ErrMalformedCredential {
			code = model.CodeMalformedCredential
			message = fmt.Sprintf("Credential must be presented as a Bearer token with the %q prefix", service.SecretPrefix)
		}
		return &rejection{
			status: http.StatusUnauthorized,
			body:   model.ErrorResponse{Error: model.ErrorDetail{Code: code, Message: message}},
		}, nil
	}

	st.credential = cred
	return nil, nil
}

func (g *Gateway) stepScopedDeny(ctx context.Context, st *requestState) (*rejection, error) {
	if st.target == "" {
		return nil, nil
	}
	entry, err := g.deny.IsDenied(ctx, st.target, &st.credential.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return denyRejection(entry), nil
}

func (g *Gateway) stepRateLimit(ctx context.Context, st *requestState) (*rejection, error) {
	decision, err := g.limiter.CheckAndCount(ctx, st.credential.ID, st.credential.Tier)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return nil, nil
	}

	retryAfter := time.Until(decision.ResetsAt)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &rejection{
		status:      http.StatusTooManyRequests,
		retryAfter:  retryAfter,
		rateLimited: true,
		body: model.RateLimitResponse{
			Error:   model.CodeRateLimitExceeded,
			Message: fmt.Sprintf("Rate limit of %d requests per %s exceeded", decision.Limit, decision.Window),
			Details: model.RateLimitDetails{
				Limit:     decision.Limit,
				WindowMs:  decision.Window.Milliseconds(),
				Usage:     decision.CurrentCount,
				ResetTime: decision.ResetsAt,
			},
			RetryAfter: int64(retryAfter.Seconds()) + 1,
		},
	}, nil
}

func denyRejection(entry *model.DenyEntry) *rejection {
	reason := entry.Reason
	if entry.Scope() == model.DenyScopeLocal {
		reason = "blocked by your own deny list: " + entry.Reason
	}
	return &rejection{
		status: http.StatusForbidden,
		body: model.BlockedResponse{
			Error:  model.CodeBlacklisted,
			Scope:  entry.Scope(),
			Reason: reason,
		},
	}
}

func (g *Gateway) writeRejection(w http.ResponseWriter, rej *rejection) {
	w.Header().Set("Content-Type", "application/json")
	if rej.retryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int64(rej.retryAfter.Seconds())+1))
	}
	w.WriteHeader(rej.status)
	json.NewEncoder(w).Encode(rej.body)
}

// finish records the attempt in the usage ledger and hands the credential to
// the abuse monitor. Both are best-effort and run off the response path.
func (g *Gateway) finish(st *requestState, status int, respBytes int64, start time.Time, rateLimited bool) {
	rec := &model.UsageRecord{
		Endpoint:      st.req.URL.Path,
		Method:        st.req.Method,
		OriginAddr:    st.req.RemoteAddr,
		StatusCode:    status,
		LatencyMs:     float64(time.Since(start).Microseconds()) / 1000.0,
		RateLimited:   rateLimited,
		RequestBytes:  max(st.req.ContentLength, 0),
		ResponseBytes: respBytes,
		CreatedAt:     time.Now().UTC(),
	}
	if st.credential != nil {
		id := st.credential.ID
		rec.CredentialID = &id
	}
	g.recorder.Record(rec)

	if st.credential != nil {
		credID := st.credential.ID
		endpoint := st.req.URL.Path
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			g.monitor.Observe(ctx, credID, endpoint, rateLimited)
		}()
	}
}
