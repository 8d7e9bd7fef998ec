package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/dataontap/DeviceInsights-sub000/internal/config"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// DEVICEINSIGHTS_DATA_DIR env var, or ~/.deviceinsights as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("DEVICEINSIGHTS_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.deviceinsights"
}

// loadConfig parses the config file viper located (or the one forced with
// --config), returning an empty Config when none exists. Individual settings
// can still be overridden through DEVICEINSIGHTS_* env vars and flags.
func loadConfig() *config.Config {
	path := viper.ConfigFileUsed()
	if path == "" {
		return &config.Config{}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &config.Config{}
	}
	return cfg
}

// openStore opens the backing store for one-shot CLI commands, using the
// same driver selection the server uses.
func openStore() (*store.Store, error) {
	cfg := loadConfig()
	return store.Open(storeOptions(cfg))
}

// storeOptions maps the store section of the config file to store.Options,
// applying the --data-dir flag and env overrides.
func storeOptions(cfg *config.Config) store.Options {
	opts := store.Options{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		DSN:     cfg.Store.DSN,
	}
	if v := viper.GetString("store.driver"); v != "" {
		opts.Driver = v
	}
	if v := viper.GetString("store.dsn"); v != "" {
		opts.DSN = v
	}
	if opts.DataDir == "" {
		opts.DataDir = resolveDataDir()
	}
	return opts
}
