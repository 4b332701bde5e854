package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100*time.Millisecond, cfg.Tracker.LockWarningThreshold)
	assert.Positive(t, cfg.Loader.Workers)
	assert.True(t, cfg.Cache.Enabled)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
loader:
  workers: 3
cache:
  in_memory: true
watch:
  debounce: 1s
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Loader.Workers)
	assert.True(t, cfg.Cache.InMemory)
	assert.True(t, cfg.Cache.Enabled, "unset keys keep their defaults")
	assert.Equal(t, time.Second, cfg.Watch.Debounce)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("loader: [1, 2"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NETGRAPH_LOG_LEVEL", "warn")
	t.Setenv("NETGRAPH_LOADER_WORKERS", "7")
	t.Setenv("NETGRAPH_CACHE_ENABLED", "off")
	t.Setenv("NETGRAPH_WATCH_DEBOUNCE", "2")
	t.Setenv("NETGRAPH_LOCK_WARNING_THRESHOLD", "not a duration")
	t.Setenv("NETGRAPH_METRICS_ENABLED", "yes")

	cfg := LoadFromEnv()
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Loader.Workers)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce, "bare integers are seconds")
	assert.Equal(t, 100*time.Millisecond, cfg.Tracker.LockWarningThreshold, "unparseable values are ignored")
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loader:\n  workers: 3\n"), 0o644))
	t.Setenv("NETGRAPH_LOADER_WORKERS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Loader.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"lock threshold", func(c *Config) { c.Tracker.LockWarningThreshold = -time.Second }},
		{"workers", func(c *Config) { c.Loader.Workers = 0 }},
		{"cache dir", func(c *Config) { c.Cache.Dir = "" }},
		{"debounce", func(c *Config) { c.Watch.Debounce = -1 }},
		{"metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("in-memory cache needs no dir", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Dir = ""
		cfg.Cache.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestString(t *testing.T) {
	cfg := Default()
	cfg.Cache.InMemory = true
	cfg.Metrics.Enabled = true
	s := cfg.String()
	assert.Contains(t, s, "Cache: memory")
	assert.Contains(t, s, "Metrics: :9464")
}
