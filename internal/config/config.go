package config

import (
	"time"

	"github.com/c-daly/logos/internal/graph"
	"github.com/c-daly/logos/internal/shacl"
)

// Config is the root configuration for the HCG access layer.
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend" yaml:"backend" validate:"required"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// BackendConfig contains graph backend connection settings.
type BackendConfig struct {
	URI               string        `mapstructure:"uri" yaml:"uri" validate:"required"`
	User              string        `mapstructure:"user" yaml:"user" validate:"required"`
	Password          string        `mapstructure:"password" yaml:"password" validate:"required"`
	Database          string        `mapstructure:"database" yaml:"database"`
	PoolMaxSize       int           `mapstructure:"pool_max_size" yaml:"pool_max_size" validate:"min=1,max=1000"`
	AcquireTimeout    time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout" validate:"min=1s"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout" validate:"min=1s"`
}

// RetryConfig controls the retry policy applied to backend operations.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"min=1ms"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"min=1ms"`
	Jitter      float64       `mapstructure:"jitter" yaml:"jitter" validate:"min=0,max=1"`
}

// ValidationConfig controls the shape validation gate on writes.
type ValidationConfig struct {
	SHACLEnabled  bool   `mapstructure:"shacl_enabled" yaml:"shacl_enabled"`
	ShapesPath    string `mapstructure:"shapes_path" yaml:"shapes_path"`
	InferenceMode string `mapstructure:"inference_mode" yaml:"inference_mode" validate:"oneof=none rdfs owl both"`
	AbortOnFirst  bool   `mapstructure:"abort_on_first" yaml:"abort_on_first"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns the standard configuration: local backend, a pool of
// 50 sessions, 3 retry attempts, shape validation on.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URI:               "bolt://localhost:7687",
			User:              "neo4j",
			Password:          "password",
			PoolMaxSize:       50,
			AcquireTimeout:    10 * time.Second,
			ConnectionTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Jitter:      0.2,
		},
		Validation: ValidationConfig{
			SHACLEnabled:  true,
			InferenceMode: string(shacl.InferenceNone),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// GraphConfig converts the backend section to the graph client's config.
func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		URI:               c.Backend.URI,
		Username:          c.Backend.User,
		Password:          c.Backend.Password,
		Database:          c.Backend.Database,
		PoolMaxSize:       c.Backend.PoolMaxSize,
		AcquireTimeout:    c.Backend.AcquireTimeout,
		ConnectionTimeout: c.Backend.ConnectionTimeout,
	}
}

// RetryPolicy converts the retry section to the graph retry policy.
func (c *Config) RetryPolicy() graph.RetryPolicy {
	return graph.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Jitter:      c.Retry.Jitter,
	}
}
