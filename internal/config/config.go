// Package config declares the YAML configuration file format.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level deviceinsights configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	MaxBodySize         int64    `yaml:"max_body_size"`
	ShutdownTimeout     string   `yaml:"shutdown_timeout"`
	CORSOrigins         []string `yaml:"cors_origins"`
	IPRequestsPerMinute int      `yaml:"ip_requests_per_minute"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	Driver  string `yaml:"driver"` // sqlite (default) or postgres
	DataDir string `yaml:"data_dir"`
	DSN     string `yaml:"dsn"`
}

// CacheConfig selects the cache backend and per-kind TTLs.
type CacheConfig struct {
	Backend     string `yaml:"backend"` // store (default) or redis
	RedisAddr   string `yaml:"redis_addr"`
	CarriersTTL string `yaml:"carriers_ttl"`
	PricingTTL  string `yaml:"pricing_ttl"`
	IspTTL      string `yaml:"isp_ttl"`
	VoiceTTL    string `yaml:"voice_ttl"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// ProviderConfig points at the external lookup/inference provider.
type ProviderConfig struct {
	BaseURL string  `yaml:"base_url"`
	APIKey  string  `yaml:"api_key"`
	Timeout string  `yaml:"timeout"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// RateLimitConfig overrides the built-in tier table. All tiers share the
// sliding-window algorithm; only (window, max) differ.
type RateLimitConfig struct {
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// TierConfig is one rate-limit tier in the config file.
type TierConfig struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

// NotifyConfig controls operator alert delivery.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// ParseDuration parses a duration string, returning fallback when the field
// is empty or invalid.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
