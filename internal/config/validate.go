package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// minAPIKeyLength is the shortest API key accepted without a warning.
const minAPIKeyLength = 16

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string

	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}

	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}

	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (e *ValidationError) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Addf adds a formatted error to the validation error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning to the validation error.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	errors *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: &ValidationError{},
	}
}

// Validate validates the configuration. Warnings never fail validation;
// read them with Warnings.
func (v *Validator) Validate(cfg *Config) error {
	v.validateStorage(cfg.Storage)
	v.validateServer(cfg.Server)
	v.validateWorkflow(cfg.Workflow)
	v.validateLog(cfg.Log)
	v.validateWebhooks(cfg.Webhooks)

	if v.errors.HasErrors() {
		return apperrors.Validation("config.Validate", v.errors.Error())
	}
	return nil
}

// Warnings returns the warnings collected by the last Validate call.
func (v *Validator) Warnings() []string {
	return v.errors.Warnings
}

func (v *Validator) validateStorage(cfg StorageConfig) {
	valid := []string{DriverMemory, DriverSQLite, DriverPostgres}
	if !slices.Contains(valid, cfg.Driver) {
		v.errors.Addf("storage.driver: must be one of %v, got %q", valid, cfg.Driver)
		return
	}

	switch cfg.Driver {
	case DriverSQLite:
		if cfg.DSN == "" && cfg.Path == "" {
			v.errors.Addf("storage.path: required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.DSN == "" {
			v.errors.Addf("storage.dsn: required for the postgres driver")
		}
	case DriverMemory:
		v.errors.Warnf("storage.driver: memory storage loses all data on restart")
	}

	if cfg.MaxOpenConns < 0 {
		v.errors.Addf("storage.max_open_conns: must not be negative")
	}
	if cfg.ConnectAttempts < 1 {
		v.errors.Addf("storage.connect_attempts: must be at least 1")
	}
}

func (v *Validator) validateServer(cfg ServerConfig) {
	if strings.TrimSpace(cfg.Address) == "" {
		v.errors.Addf("server.address: required")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		v.errors.Addf("server: timeouts must not be negative")
	}
	if slices.Contains(cfg.CORSOrigins, "*") {
		v.errors.Warnf("server.cors_origins: \"*\" allows any origin")
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Rate < 1 {
			v.errors.Addf("server.rate_limit.rate: must be at least 1")
		}
		if cfg.RateLimit.Burst < cfg.RateLimit.Rate {
			v.errors.Addf("server.rate_limit.burst: must be at least rate (%d)", cfg.RateLimit.Rate)
		}
		if cfg.RateLimit.Interval <= 0 {
			v.errors.Addf("server.rate_limit.interval: must be positive")
		}
	}

	if len(cfg.APIKeys) == 0 {
		v.errors.Warnf("server.api_keys: none configured; every API call will be rejected")
	}
	seen := make(map[string]bool, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		field := fmt.Sprintf("server.api_keys[%d]", i)
		switch {
		case k.Key == "":
			v.errors.Addf("%s.key: required", field)
		case strings.HasPrefix(k.Key, "${"):
			v.errors.Addf("%s.key: environment variable %s is not set", field, k.Key)
		case seen[k.Key]:
			v.errors.Addf("%s.key: duplicate key", field)
		case len(k.Key) < minAPIKeyLength:
			v.errors.Warnf("%s.key: shorter than %d characters", field, minAPIKeyLength)
		}
		seen[k.Key] = true

		if k.ActorID <= 0 {
			v.errors.Addf("%s.actor_id: must be positive", field)
		}
		if k.Role != "publisher" && k.Role != "admin" {
			v.errors.Addf("%s.role: must be publisher or admin, got %q", field, k.Role)
		}
	}
}

func (v *Validator) validateWorkflow(cfg WorkflowConfig) {
	if cfg.MaxEndpointSuffix < 1 {
		v.errors.Addf("workflow.max_endpoint_suffix: must be at least 1")
	}
	if cfg.RetryAttempts < 1 {
		v.errors.Addf("workflow.retry_attempts: must be at least 1")
	}
	if cfg.RetryInitialDelay < 0 {
		v.errors.Addf("workflow.retry_initial_delay: must not be negative")
	}
	if cfg.RetryMaxDelay < cfg.RetryInitialDelay {
		v.errors.Addf("workflow.retry_max_delay: must be at least retry_initial_delay")
	}
}

func (v *Validator) validateLog(cfg LogConfig) {
	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, strings.ToLower(cfg.Level)) {
		v.errors.Addf("log.level: must be one of %v, got %q", levels, cfg.Level)
	}
	formats := []string{"text", "json"}
	if !slices.Contains(formats, cfg.Format) {
		v.errors.Addf("log.format: must be one of %v, got %q", formats, cfg.Format)
	}
}

func (v *Validator) validateWebhooks(hooks []WebhookConfig) {
	for i, wh := range hooks {
		field := fmt.Sprintf("webhooks[%d]", i)
		u, err := url.Parse(wh.URL)
		switch {
		case wh.URL == "":
			v.errors.Addf("%s.url: required", field)
		case err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "":
			v.errors.Addf("%s.url: must be an absolute http or https URL", field)
		case u.Scheme == "http":
			v.errors.Warnf("%s.url: events are sent unencrypted", field)
		}
		if strings.HasPrefix(wh.Secret, "${") {
			v.errors.Addf("%s.secret: environment variable %s is not set", field, wh.Secret)
		}
		if wh.Timeout < 0 || wh.RetryDelay < 0 || wh.RetryCount < 0 {
			v.errors.Addf("%s: durations and retry_count must not be negative", field)
		}
	}
}

// Validate validates cfg with a fresh Validator.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
