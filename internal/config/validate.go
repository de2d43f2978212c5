package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// Exactly one durable store backend must be configured.
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required (or set SQLITE_PATH for the embedded store)",
		})
	}
	if cfg.DatabaseURL != "" && cfg.SQLitePath != "" {
		errs = append(errs, ValidationError{
			Field:   "SQLITE_PATH",
			Message: "must not be set together with DATABASE_URL",
		})
	}

	errs = appendDurationErrs(errs, "CACHE_TTL", cfg.CacheTTLStr)
	errs = appendDurationErrs(errs, "DB_OP_TIMEOUT", cfg.DBOpTimeoutStr)
	errs = appendDurationErrs(errs, "WRITE_RETRY_BASE_DELAY", cfg.WriteRetryBaseDelayStr)
	errs = appendDurationErrs(errs, "WRITE_RETRY_MAX_DELAY", cfg.WriteRetryMaxDelayStr)
	errs = appendDurationErrs(errs, "CACHE_BREAKER_COOLDOWN", cfg.CacheBreakerCooldownStr)
	errs = appendDurationErrs(errs, "WATCHDOG_INTERVAL", cfg.WatchdogIntervalStr)
	errs = appendDurationErrs(errs, "WATCHDOG_THRESHOLD", cfg.WatchdogThresholdStr)

	if cfg.WriteRetryMax < 1 {
		errs = append(errs, ValidationError{
			Field:   "WRITE_RETRY_MAX",
			Message: "must be at least 1",
		})
	}

	if cfg.WriteRetryMaxDelay != 0 && cfg.WriteRetryBaseDelay > cfg.WriteRetryMaxDelay {
		errs = append(errs, ValidationError{
			Field:   "WRITE_RETRY_BASE_DELAY",
			Message: "must not exceed WRITE_RETRY_MAX_DELAY",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDurationErrs(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
