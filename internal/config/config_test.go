package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deviceinsights.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 0.0.0.0
  port: 9090
  ip_requests_per_minute: 60
store:
  driver: postgres
  dsn: postgres://localhost/deviceinsights
cache:
  backend: redis
  redis_addr: localhost:6380
  carriers_ttl: 2h
rate_limit:
  tiers:
    premium:
      window: 30m
      max_requests: 5000
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("got server %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("got driver %q", cfg.Store.Driver)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6380" {
		t.Errorf("got cache %+v", cfg.Cache)
	}
	tier, ok := cfg.RateLimit.Tiers["premium"]
	if !ok || tier.Window != "30m" || tier.MaxRequests != 5000 {
		t.Errorf("got premium tier %+v (present=%v)", tier, ok)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("got logging %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("got %v, want 45s", got)
	}
	if got := ParseDuration("", time.Minute); got != time.Minute {
		t.Errorf("empty: got %v, want fallback", got)
	}
	if got := ParseDuration("soon", time.Minute); got != time.Minute {
		t.Errorf("invalid: got %v, want fallback", got)
	}
}
