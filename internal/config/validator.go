package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
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
	v.validateWatchdog(&cfg.Watchdog)
	v.validateState(&cfg.State)
	v.validateReport(&cfg.Report)
	v.validateAlert(&cfg.Alert)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateWatchdog(cfg *WatchdogConfig) {
	d, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		v.addError("watchdog.interval", cfg.Interval, "must be a valid duration")
	} else if d < time.Second {
		v.addError("watchdog.interval", cfg.Interval, "must be at least 1s")
	}
	if cfg.Parallelism < 1 {
		v.addError("watchdog.parallelism", cfg.Parallelism, "must be at least 1")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	switch cfg.Backend {
	case "none", "":
	case "sqlite", "json":
		// Only check the path once the backend itself is valid, so a bad
		// backend name reports a single error.
		if cfg.Path == "" {
			v.addError("state.path", cfg.Path, "required when a state backend is enabled")
		}
	default:
		v.addError("state.backend", cfg.Backend, "must be one of: none, sqlite, json")
	}
}

func (v *Validator) validateReport(cfg *ReportConfig) {
	switch cfg.Format {
	case "text", "json":
	default:
		v.addError("report.format", cfg.Format, "must be one of: text, json")
	}
}

func (v *Validator) validateAlert(cfg *AlertConfig) {
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			v.addError("alert.endpoint", cfg.Endpoint, "must be an http(s) URL")
		}
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			v.addError("alert.timeout", cfg.Timeout, "must be a valid duration")
		}
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if !cfg.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		v.addError("server.addr", cfg.Addr, "must be host:port")
	}
}
