package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/dataontap/DeviceInsights-sub000/internal/handler"
	"github.com/dataontap/DeviceInsights-sub000/internal/lookup"
	"github.com/dataontap/DeviceInsights-sub000/internal/server/middleware"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
	"github.com/dataontap/DeviceInsights-sub000/internal/usage"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	// IPRequestsPerMinute caps unauthenticated traffic per origin address
	// before any credential is examined.
	IPRequestsPerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:                "0.0.0.0",
		Port:                8080,
		ShutdownTimeout:     30 * time.Second,
		CORSOrigins:         []string{"*"},
		MaxBodySize:         1 * 1024 * 1024, // 1MB
		IPRequestsPerMinute: 120,
	}
}

// Deps bundles everything the server composes.
type Deps struct {
	Store     *store.Store
	AuthSvc   *service.AuthService
	Limiter   *service.RateLimiter
	DenyList  *service.DenyList
	Monitor   *service.AbuseMonitor
	Recorder  *usage.Recorder
	LookupSvc *lookup.Service
	Logger    *slog.Logger
}

// Server is the top-level HTTP server. It owns the Chi router and the
// request gateway that fronts every public lookup endpoint.
type Server struct {
	cfg        Config
	deps       Deps
	gateway    *Gateway
	router     chi.Router
	httpServer *http.Server
}

// New creates a new Server with all routes and middleware wired. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		gateway: NewGateway(deps.AuthSvc, deps.Limiter, deps.DenyList,
			deps.Recorder, deps.Monitor, deps.Logger),
	}
	s.setupRouter()
	return s
}

func deviceTarget(r *http.Request) string {
	return chi.URLParam(r, "imei")
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	lookupHandler := handler.NewLookupHandler(s.deps.LookupSvc)
	sysHandler := handler.NewSystemHandler(s.deps.Store, s.deps.AuthSvc, s.deps.DenyList)

	r.Route("/api/v1", func(r chi.Router) {

		// Public lookup endpoints. The address-based fixed window runs
		// first, before any credential is read; then the gateway pipeline.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(s.cfg.IPRequestsPerMinute, time.Minute))

			r.Group(func(r chi.Router) {
				r.Use(s.gateway.Protect(deviceTarget))
				r.Get("/device/{imei}/compatibility", lookupHandler.CheckCompatibility)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.gateway.Protect(nil))
				r.Get("/carriers", lookupHandler.Carriers)
				r.Get("/pricing", lookupHandler.Pricing)
				r.Get("/network/isp", lookupHandler.Isp)
				r.Post("/voice", lookupHandler.Voice)
			})
		})

		// Operator API.
		r.Route("/system", func(r chi.Router) {
			r.Post("/admin/session", sysHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(s.deps.AuthSvc))

				r.Get("/credential", sysHandler.ListCredentials)
				r.Post("/credential", sysHandler.CreateCredential)
				r.Delete("/credential/{credentialId}", sysHandler.RevokeCredential)
				r.Put("/credential/{credentialId}/tier", sysHandler.UpdateCredentialTier)

				r.Get("/denylist", sysHandler.ListDenyEntries)
				r.Post("/denylist", sysHandler.AddDenyEntry)
				r.Delete("/denylist/{targetId}", sysHandler.RemoveDenyEntry)

				r.Get("/notification", sysHandler.ListNotifications)
				r.Put("/notification/{notificationId}/read", sysHandler.MarkNotificationRead)

				r.Get("/usage", sysHandler.RecentUsage)
				r.Get("/usage/summary", sysHandler.UsageSummary)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the backing store is
// reachable, or 503 when it is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.deps.Store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then drains in-flight requests, flushes the usage
// recorder, and closes the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      http.MaxBytesHandler(s.router, s.cfg.MaxBodySize),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.deps.Logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.deps.Recorder.Shutdown()
	s.deps.Store.Close()
	s.deps.Logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
