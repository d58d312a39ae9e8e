package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-daly/logos/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "bolt://localhost:7687", cfg.Backend.URI)
	assert.Equal(t, 50, cfg.Backend.PoolMaxSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Validation.SHACLEnabled)
	assert.Equal(t, "none", cfg.Validation.InferenceMode)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader(NewValidator()).Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Backend, cfg.Backend)
	assert.Equal(t, DefaultConfig().Retry, cfg.Retry)
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BACKEND_URI", "bolt://graph.internal:7687")
	t.Setenv("BACKEND_USER", "hcg")
	t.Setenv("BACKEND_PASSWORD", "secret")
	t.Setenv("BACKEND_DATABASE", "knowledge")
	t.Setenv("POOL_MAX_SIZE", "8")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("SHACL_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := NewLoader(NewValidator()).Load("")
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Backend.URI)
	assert.Equal(t, "hcg", cfg.Backend.User)
	assert.Equal(t, "secret", cfg.Backend.Password)
	assert.Equal(t, "knowledge", cfg.Backend.Database)
	assert.Equal(t, 8, cfg.Backend.PoolMaxSize)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Validation.SHACLEnabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoader_FileThenEnvironmentPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logos.yaml")
	doc := `backend:
  uri: bolt://from-file:7687
  pool_max_size: 10
retry:
  max_attempts: 4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("POOL_MAX_SIZE", "20")

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://from-file:7687", cfg.Backend.URI)
	assert.Equal(t, 20, cfg.Backend.PoolMaxSize, "environment wins over file")
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader(NewValidator()).Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Backend.URI, cfg.Backend.URI)
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: ["), 0o644))

	_, err := NewLoader(NewValidator()).Load(path)
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty uri", func(c *Config) { c.Backend.URI = "" }},
		{"empty user", func(c *Config) { c.Backend.User = "" }},
		{"zero pool", func(c *Config) { c.Backend.PoolMaxSize = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"excess attempts", func(c *Config) { c.Retry.MaxAttempts = 99 }},
		{"bad inference mode", func(c *Config) { c.Validation.InferenceMode = "psychic" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"max below base delay", func(c *Config) {
			c.Retry.BaseDelay = time.Second
			c.Retry.MaxDelay = time.Millisecond
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()

	gc := cfg.GraphConfig()
	assert.Equal(t, cfg.Backend.URI, gc.URI)
	assert.Equal(t, cfg.Backend.PoolMaxSize, gc.PoolMaxSize)
	require.NoError(t, gc.Validate())

	rp := cfg.RetryPolicy()
	assert.Equal(t, cfg.Retry.MaxAttempts, rp.MaxAttempts)
	assert.Equal(t, cfg.Retry.Jitter, rp.Jitter)
}
