package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/c-daly/logos/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

// structValidator implements Validator using go-playground/validator tags.
type structValidator struct {
	validate *validator.Validate
}

// NewValidator creates the standard configuration validator.
func NewValidator() Validator {
	return &structValidator{validate: validator.New()}
}

// Validate checks struct tags and cross-field rules, returning one coded
// error listing every violation.
func (v *structValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	var messages []string
	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		for _, e := range validationErrs {
			messages = append(messages, formatFieldError(e))
		}
	}

	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		messages = append(messages, fmt.Sprintf(
			"retry.max_delay (%s) must not be below retry.base_delay (%s)",
			cfg.Retry.MaxDelay, cfg.Retry.BaseDelay))
	}

	if len(messages) > 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - "+strings.Join(messages, "\n  - "))
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	field = strings.TrimPrefix(field, "config.")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation (got: %v)", field, e.Tag(), e.Value())
	}
}
