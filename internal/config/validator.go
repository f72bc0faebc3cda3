package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateBackend(&cfg.Backend)
	v.validateAnalysis(&cfg.Analysis)
	v.validateStore(&cfg.Store)
	v.validateRelay(&cfg.Relay)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateBackend(cfg *BackendConfig) {
	u, err := url.Parse(cfg.BaseURL)
	if cfg.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addError("backend.base_url", cfg.BaseURL, "must be an absolute http(s) URL")
	}
	v.validatePositiveDuration("backend.request_timeout", cfg.RequestTimeout)
}

func (v *Validator) validateAnalysis(cfg *AnalysisConfig) {
	if d, err := Duration(cfg.IdleTimeout); err != nil {
		v.addError("analysis.idle_timeout", cfg.IdleTimeout, "invalid duration")
	} else if d < 0 {
		v.addError("analysis.idle_timeout", cfg.IdleTimeout, "must be non-negative")
	}
	if cfg.EventBuffer <= 0 {
		v.addError("analysis.event_buffer", cfg.EventBuffer, "must be positive")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Path == "" {
		v.addError("store.path", cfg.Path, "path required when the store is enabled")
	} else if !isValidPath(cfg.Path) {
		v.addError("store.path", cfg.Path, "invalid file path")
	}
	if cfg.BusyRetries < 0 {
		v.addError("store.busy_retries", cfg.BusyRetries, "must be non-negative")
	}
	v.validatePositiveDuration("store.retry_wait", cfg.RetryWait)
}

func (v *Validator) validateRelay(cfg *RelayConfig) {
	if cfg.Host == "" {
		v.addError("relay.host", cfg.Host, "host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		v.addError("relay.port", cfg.Port, "must be between 1 and 65535")
	}
	v.validatePositiveDuration("relay.heartbeat", cfg.Heartbeat)
}

func (v *Validator) validatePositiveDuration(field, value string) {
	d, err := Duration(value)
	switch {
	case err != nil:
		v.addError(field, value, "invalid duration")
	case d <= 0:
		v.addError(field, value, "must be positive")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
