// Package config loads netgraph settings from a YAML file and the environment.
//
// Settings are resolved in three layers, later layers winning:
//  1. Built-in defaults (Default)
//  2. An optional YAML file (LoadFile)
//  3. NETGRAPH_* environment variables (ApplyEnv)
//
// Example Usage:
//
//	cfg, err := config.Load("netgraph.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Println(cfg)
//
// Environment Variables:
//   - NETGRAPH_LOG_LEVEL="debug" | "info" | "warn" | "error"
//   - NETGRAPH_LOG_FORMAT="text" | "json"
//   - NETGRAPH_LOCK_WARNING_THRESHOLD=100ms
//   - NETGRAPH_LOADER_WORKERS=4
//   - NETGRAPH_CACHE_ENABLED=true
//   - NETGRAPH_CACHE_DIR="~/.cache/netgraph"
//   - NETGRAPH_CACHE_IN_MEMORY=false
//   - NETGRAPH_CACHE_SYNC_WRITES=false
//   - NETGRAPH_CACHE_HOT_ENTRIES=64
//   - NETGRAPH_WATCH_DEBOUNCE=250ms
//   - NETGRAPH_METRICS_ENABLED=false
//   - NETGRAPH_METRICS_ADDR=":9464"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all netgraph configuration.
//
// Sections:
//   - Logging: slog level and handler format
//   - Tracker: component tracker tuning
//   - Loader: pairwise file parsing
//   - Cache: persistent parse cache
//   - Watch: file watching for the watch command
//   - Metrics: Prometheus endpoint
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Tracker TrackerConfig `yaml:"tracker"`
	Loader  LoaderConfig  `yaml:"loader"`
	Cache   CacheConfig   `yaml:"cache"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: text or json
	Format string `yaml:"format"`
}

// TrackerConfig holds component tracker settings.
type TrackerConfig struct {
	// LockWarningThreshold is how long a lock acquisition may block before a
	// warning is logged. Zero uses the tracker default.
	LockWarningThreshold time.Duration `yaml:"lock_warning_threshold"`
}

// LoaderConfig holds input parsing settings.
type LoaderConfig struct {
	// Workers bounds how many files are parsed concurrently.
	Workers int `yaml:"workers"`
}

// CacheConfig holds parse cache settings.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`

	// HotEntries bounds the in-memory layer; negative disables it.
	HotEntries int `yaml:"hot_entries"`
}

// WatchConfig holds file watching settings.
type WatchConfig struct {
	// Debounce collapses bursts of file events into a single reload.
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracker: TrackerConfig{LockWarningThreshold: 100 * time.Millisecond},
		Loader:  LoaderConfig{Workers: runtime.GOMAXPROCS(0)},
		Cache:   CacheConfig{Enabled: true, Dir: defaultCacheDir(), HotEntries: 64},
		Watch:   WatchConfig{Debounce: 250 * time.Millisecond},
		Metrics: MetricsConfig{Addr: ":9464"},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", ".netgraph-cache")
	}
	return filepath.Join(dir, "netgraph")
}

// LoadFile reads YAML from path on top of the defaults. Keys missing from the
// file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves the full configuration: defaults, then the file at path when
// path is not empty, then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults overridden by NETGRAPH_* variables.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides c with any NETGRAPH_* variables that are set. Values that
// fail to parse are ignored.
func (c *Config) ApplyEnv() {
	c.Logging.Level = getEnv("NETGRAPH_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("NETGRAPH_LOG_FORMAT", c.Logging.Format)

	c.Tracker.LockWarningThreshold = getEnvDuration("NETGRAPH_LOCK_WARNING_THRESHOLD", c.Tracker.LockWarningThreshold)

	c.Loader.Workers = getEnvInt("NETGRAPH_LOADER_WORKERS", c.Loader.Workers)

	c.Cache.Enabled = getEnvBool("NETGRAPH_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Dir = getEnv("NETGRAPH_CACHE_DIR", c.Cache.Dir)
	c.Cache.InMemory = getEnvBool("NETGRAPH_CACHE_IN_MEMORY", c.Cache.InMemory)
	c.Cache.SyncWrites = getEnvBool("NETGRAPH_CACHE_SYNC_WRITES", c.Cache.SyncWrites)
	c.Cache.HotEntries = getEnvInt("NETGRAPH_CACHE_HOT_ENTRIES", c.Cache.HotEntries)

	c.Watch.Debounce = getEnvDuration("NETGRAPH_WATCH_DEBOUNCE", c.Watch.Debounce)

	c.Metrics.Enabled = getEnvBool("NETGRAPH_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getEnv("NETGRAPH_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks the configuration for invalid values.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Tracker.LockWarningThreshold < 0 {
		return fmt.Errorf("invalid lock warning threshold: %s", c.Tracker.LockWarningThreshold)
	}
	if c.Loader.Workers <= 0 {
		return fmt.Errorf("invalid loader workers: %d", c.Loader.Workers)
	}
	if c.Cache.Enabled && !c.Cache.InMemory && c.Cache.Dir == "" {
		return errors.New("cache enabled but no cache directory provided")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch debounce: %s", c.Watch.Debounce)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics enabled but no address provided")
	}
	return nil
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	cache := "off"
	if c.Cache.Enabled {
		cache = c.Cache.Dir
		if c.Cache.InMemory {
			cache = "memory"
		}
	}
	metrics := "off"
	if c.Metrics.Enabled {
		metrics = c.Metrics.Addr
	}
	return fmt.Sprintf(
		"Config{Log: %s/%s, Workers: %d, Cache: %s, Debounce: %s, Metrics: %s}",
		c.Logging.Level, c.Logging.Format,
		c.Loader.Workers, cache, c.Watch.Debounce, metrics,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
