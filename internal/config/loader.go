package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/c-daly/logos/internal/types"
)

// envBindings maps config keys to the environment variables that override
// them. The names are the deployment contract: they are shared by every
// subsystem that talks to the HCG.
var envBindings = map[string]string{
	"backend.uri":               "BACKEND_URI",
	"backend.user":              "BACKEND_USER",
	"backend.password":          "BACKEND_PASSWORD",
	"backend.database":          "BACKEND_DATABASE",
	"backend.pool_max_size":     "POOL_MAX_SIZE",
	"retry.max_attempts":        "RETRY_MAX_ATTEMPTS",
	"validation.shacl_enabled":  "SHACL_ENABLED",
	"validation.shapes_path":    "SHACL_SHAPES_PATH",
	"validation.inference_mode": "SHACL_INFERENCE_MODE",
	"logging.level":             "LOG_LEVEL",
}

// Loader loads configuration from an optional YAML file with environment
// variable overrides on top of the defaults.
type Loader struct {
	validator Validator
}

// NewLoader creates a Loader with the given validator.
func NewLoader(validator Validator) *Loader {
	return &Loader{validator: validator}
}

// Load reads configuration with defaults < file < environment precedence.
// An empty path or a missing file means file configuration is skipped.
func (l *Loader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := DefaultConfig()
	v.SetDefault("backend.uri", defaults.Backend.URI)
	v.SetDefault("backend.user", defaults.Backend.User)
	v.SetDefault("backend.password", defaults.Backend.Password)
	v.SetDefault("backend.database", defaults.Backend.Database)
	v.SetDefault("backend.pool_max_size", defaults.Backend.PoolMaxSize)
	v.SetDefault("backend.acquire_timeout", defaults.Backend.AcquireTimeout)
	v.SetDefault("backend.connection_timeout", defaults.Backend.ConnectionTimeout)
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", defaults.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", defaults.Retry.MaxDelay)
	v.SetDefault("retry.jitter", defaults.Retry.Jitter)
	v.SetDefault("validation.shacl_enabled", defaults.Validation.SHACLEnabled)
	v.SetDefault("validation.shapes_path", defaults.Validation.ShapesPath)
	v.SetDefault("validation.inference_mode", defaults.Validation.InferenceMode)
	v.SetDefault("validation.abort_on_first", defaults.Validation.AbortOnFirst)
	v.SetDefault("logging.level", defaults.Logging.Level)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				"failed to bind environment variable", err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
					"failed to read config file", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
				"failed to stat config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			"failed to unmarshal config", err)
	}

	if l.validator != nil {
		if err := l.validator.Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
