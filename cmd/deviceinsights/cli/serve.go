package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dataontap/DeviceInsights-sub000/internal/cache"
	"github.com/dataontap/DeviceInsights-sub000/internal/config"
	"github.com/dataontap/DeviceInsights-sub000/internal/lookup"
	"github.com/dataontap/DeviceInsights-sub000/internal/notify"
	"github.com/dataontap/DeviceInsights-sub000/internal/server"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
	"github.com/dataontap/DeviceInsights-sub000/internal/usage"
)

const banner = `
 ___          _         ___         _      _   _
|   \ _____ _(_)__ ___ |_ _|_ _  __(_)__ _| |_| |_ ___
| |) / -_) V / / _/ -_) | || ' \(_-< / _' | ' \  _(_-<
|___/\___|\_/|_\__\___|___|_||_/__/_\__, |_||_\__/__/
                                    |___/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DeviceInsights API server",
		Long:  "Start the HTTP server that exposes the device compatibility lookup API behind the request gateway.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg := loadConfig()
	logger := newLogger(cfg.Logging, dev)

	// 1. Backing store (SQLite by default, Postgres via store.dsn).
	opts := storeOptions(cfg)
	st, err := store.Open(opts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "driver", opts.Driver, "data_dir", opts.DataDir)

	// 2. Cache backend. The store backend shares the primary database;
	// redis offloads cache traffic when configured.
	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "redis":
		addr := cfg.Cache.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		backend = cache.NewRedisBackend(redis.NewClient(&redis.Options{Addr: addr}))
		logger.Info("cache backend initialized", "backend", "redis", "addr", addr)
	default:
		backend = cache.NewStoreBackend(st)
		logger.Info("cache backend initialized", "backend", "store")
	}
	cacheGw := cache.NewGateway(backend, logger)

	// 3. External lookup provider and the lookup service built on it.
	provider := lookup.NewHTTPProvider(lookup.ProviderConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: config.ParseDuration(cfg.Provider.Timeout, 0),
		RPS:     cfg.Provider.RPS,
		Burst:   cfg.Provider.Burst,
	})
	ttls := lookup.DefaultTTLs()
	ttls.Carriers = config.ParseDuration(cfg.Cache.CarriersTTL, ttls.Carriers)
	ttls.Pricing = config.ParseDuration(cfg.Cache.PricingTTL, ttls.Pricing)
	ttls.Isp = config.ParseDuration(cfg.Cache.IspTTL, ttls.Isp)
	ttls.Voice = config.ParseDuration(cfg.Cache.VoiceTTL, ttls.Voice)
	lookupSvc := lookup.NewService(cacheGw, provider, provider, provider, provider, ttls, logger)

	// 4. Gateway services: auth, rate limiting, deny list, abuse monitor.
	jwtSecret := cfg.Auth.JWTSecret
	if v := viper.GetString("auth.jwt_secret"); v != "" {
		jwtSecret = v
	}
	if jwtSecret == "" {
		jwtSecret = "deviceinsights-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using insecure development default")
	}
	authSvc := service.NewAuthService(st, jwtSecret, logger)

	limiter := service.NewRateLimiter(st, tierTable(cfg.RateLimit))

	denyList := service.NewDenyList(st)

	notifier := notify.NewWebhook(cfg.Notify.WebhookURL, logger)
	monitor := service.NewAbuseMonitor(st, notifier, logger)

	// 5. Usage recorder, drained on shutdown.
	recorder := usage.NewRecorder(st, logger, 1024)
	recorder.Start()

	// 6. First-run check.
	hasAdmin, err := st.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: deviceinsights admin create")
	}

	// 7. Build and start the HTTP server.
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if cfg.Server.Host != "" && !viper.IsSet("server.host") {
		srvCfg.Host = cfg.Server.Host
	}
	if cfg.Server.Port != 0 && !viper.IsSet("server.port") {
		srvCfg.Port = cfg.Server.Port
	}
	if cfg.Server.MaxBodySize > 0 {
		srvCfg.MaxBodySize = cfg.Server.MaxBodySize
	}
	if cfg.Server.IPRequestsPerMinute > 0 {
		srvCfg.IPRequestsPerMinute = cfg.Server.IPRequestsPerMinute
	}
	if len(cfg.Server.CORSOrigins) > 0 && !dev {
		srvCfg.CORSOrigins = cfg.Server.CORSOrigins
	}
	srvCfg.ShutdownTimeout = config.ParseDuration(cfg.Server.ShutdownTimeout, srvCfg.ShutdownTimeout)

	srv := server.New(srvCfg, server.Deps{
		Store:     st,
		AuthSvc:   authSvc,
		Limiter:   limiter,
		DenyList:  denyList,
		Monitor:   monitor,
		Recorder:  recorder,
		LookupSvc: lookupSvc,
		Logger:    logger,
	})

	fmt.Printf("→ DeviceInsights %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

// newLogger builds the process logger from the logging config section.
func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// tierTable merges config overrides over the built-in tier table.
func tierTable(cfg config.RateLimitConfig) map[string]service.TierLimit {
	tiers := service.DefaultTiers()
	for name, tc := range cfg.Tiers {
		t := tiers[name]
		t.Window = config.ParseDuration(tc.Window, t.Window)
		if tc.MaxRequests > 0 {
			t.MaxRequests = tc.MaxRequests
		}
		tiers[name] = t
	}
	return tiers
}
