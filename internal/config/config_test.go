package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Extensions.AutoStart)
	assert.False(t, cfg.Extensions.PreSortDependencies)
	assert.Equal(t, 30, cfg.Extensions.CallTimeoutSeconds)
	assert.NoError(t, Validate(cfg))
}

func TestLoader_Load(t *testing.T) {
	t.Run("missing file yields defaults with paths filled", func(t *testing.T) {
		cfg, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()
		require.NoError(t, err)
		assert.Equal(t, 8090, cfg.Server.Port)
		assert.NotEmpty(t, cfg.Database.Path)
		assert.NotEmpty(t, cfg.Extensions.Dir)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spywatcher.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"server": {"port": 9999},
			"cache": {"backend": "redis", "addr": "redis:6379"},
			"data_dir": "/tmp/sw-test",
			"extensions": {"pre_sort_dependencies": true}
		}`), 0o644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "redis", cfg.Cache.Backend)
		assert.True(t, cfg.Extensions.PreSortDependencies)
		assert.Equal(t, filepath.Join("/tmp/sw-test", "spywatcher.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join("/tmp/sw-test", "extensions"), cfg.Extensions.Dir)
	})

	t.Run("malformed file errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spywatcher.json")
		require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config { return DefaultConfig() }

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		assert.Error(t, Validate(cfg))
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Logging.Level = "verbose"
		assert.Error(t, Validate(cfg))
	})

	t.Run("bad cache backend", func(t *testing.T) {
		cfg := base()
		cfg.Cache.Backend = "memcached"
		assert.Error(t, Validate(cfg))
	})

	t.Run("redis requires addr", func(t *testing.T) {
		cfg := base()
		cfg.Cache.Backend = "redis"
		cfg.Cache.Addr = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := base()
		cfg.Extensions.CallTimeoutSeconds = -1
		assert.Error(t, Validate(cfg))
	})

	t.Run("bad cron expression", func(t *testing.T) {
		cfg := base()
		cfg.Monitor.HealthCron = "every minute"
		assert.Error(t, Validate(cfg))
	})

	t.Run("descriptor cron accepted", func(t *testing.T) {
		cfg := base()
		cfg.Monitor.HealthCron = "@every 30s"
		assert.NoError(t, Validate(cfg))
	})
}
