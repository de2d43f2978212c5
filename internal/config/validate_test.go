package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:         "postgres://localhost/statussync",
		CacheTTLStr:         "60s",
		DBOpTimeoutStr:      "5s",
		WriteRetryMax:       3,
		WriteRetryBaseDelay: 100 * time.Millisecond,
		WriteRetryMaxDelay:  2 * time.Second,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_SQLiteOnlyIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.SQLitePath = "/var/lib/statussync/status.db"

	if err := Validate(cfg); err != nil {
		t.Errorf("sqlite-only config should be valid, got: %v", err)
	}
}

func TestValidate_MissingStoreBackend(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error when no store backend is configured")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_BothBackendsRejected(t *testing.T) {
	cfg := validConfig()
	cfg.SQLitePath = "/tmp/status.db"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error when both backends are configured")
	}
	if !strings.Contains(err.Error(), "SQLITE_PATH") {
		t.Errorf("error should mention SQLITE_PATH: %q", err.Error())
	}
}

func TestValidate_InvalidDurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"non-parseable ttl", func(c *Config) { c.CacheTTLStr = "invalid" }, "invalid duration"},
		{"negative ttl", func(c *Config) { c.CacheTTLStr = "-1s" }, "must be positive"},
		{"zero op timeout", func(c *Config) { c.DBOpTimeoutStr = "0s" }, "must be positive"},
		{"bad watchdog interval", func(c *Config) { c.WatchdogIntervalStr = "soon" }, "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_RetryMaxBelowOne(t *testing.T) {
	cfg := validConfig()
	cfg.WriteRetryMax = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for WRITE_RETRY_MAX below 1")
	}
	if !strings.Contains(err.Error(), "WRITE_RETRY_MAX") {
		t.Errorf("error should mention WRITE_RETRY_MAX: %q", err.Error())
	}
}

func TestValidate_BaseDelayAboveMaxDelay(t *testing.T) {
	cfg := validConfig()
	cfg.WriteRetryBaseDelay = 5 * time.Second
	cfg.WriteRetryMaxDelay = time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error when base delay exceeds max delay")
	}
	if !strings.Contains(err.Error(), "WRITE_RETRY_BASE_DELAY") {
		t.Errorf("error should mention WRITE_RETRY_BASE_DELAY: %q", err.Error())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Config{
		CacheTTLStr:   "invalid",
		WriteRetryMax: 0,
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(errs) != 3 {
		t.Errorf("expected 3 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	got := err.Error()
	want := "DATABASE_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
