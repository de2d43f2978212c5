package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the statussync service.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	CacheTTL    time.Duration `json:"-"`
	CacheTTLStr string        `json:"cache_ttl"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// WriteToken restricts the write endpoint; empty disables the check.
	WriteToken string `json:"write_token,omitempty"`

	WriteRetryMax          int           `json:"write_retry_max"`
	WriteRetryBaseDelay    time.Duration `json:"-"`
	WriteRetryBaseDelayStr string        `json:"write_retry_base_delay"`
	WriteRetryMaxDelay     time.Duration `json:"-"`
	WriteRetryMaxDelayStr  string        `json:"write_retry_max_delay"`

	// CacheBreakerThreshold: 0 disables the cache circuit breaker.
	CacheBreakerThreshold   int           `json:"cache_breaker_threshold"`
	CacheBreakerCooldown    time.Duration `json:"-"`
	CacheBreakerCooldownStr string        `json:"cache_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	WatchdogEnabled      bool          `json:"watchdog_enabled"`
	WatchdogInterval     time.Duration `json:"-"`
	WatchdogIntervalStr  string        `json:"watchdog_interval"`
	WatchdogThreshold    time.Duration `json:"-"`
	WatchdogThresholdStr string        `json:"watchdog_threshold"`
	WatchdogBatchSize    int           `json:"watchdog_batch_size"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		SQLitePath:              os.Getenv("SQLITE_PATH"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		HTTPAddr:                os.Getenv("HTTP_ADDR"),
		CacheTTLStr:             os.Getenv("CACHE_TTL"),
		DBOpTimeoutStr:          os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:    os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:    os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:  os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		WriteToken:              os.Getenv("WRITE_TOKEN"),
		WriteRetryBaseDelayStr:  os.Getenv("WRITE_RETRY_BASE_DELAY"),
		WriteRetryMaxDelayStr:   os.Getenv("WRITE_RETRY_MAX_DELAY"),
		CacheBreakerCooldownStr: os.Getenv("CACHE_BREAKER_COOLDOWN"),
		MetricsEnabled:          os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:             os.Getenv("METRICS_PATH"),
		MetricsPort:             os.Getenv("METRICS_PORT"),
		WatchdogEnabled:         os.Getenv("WATCHDOG_ENABLED") == "true",
		WatchdogIntervalStr:     os.Getenv("WATCHDOG_INTERVAL"),
		WatchdogThresholdStr:    os.Getenv("WATCHDOG_THRESHOLD"),
	}

	if retryStr := os.Getenv("WRITE_RETRY_MAX"); retryStr != "" {
		if n, err := parseInt(retryStr); err == nil && n > 0 {
			cfg.WriteRetryMax = n
		} else {
			log.Printf("config: invalid WRITE_RETRY_MAX %q (must be a positive integer), using default 3", retryStr)
		}
	}
	if cfg.WriteRetryMax == 0 {
		cfg.WriteRetryMax = 3
	}

	if threshStr := os.Getenv("CACHE_BREAKER_THRESHOLD"); threshStr != "" {
		if n, err := parseInt(threshStr); err == nil {
			cfg.CacheBreakerThreshold = n
		} else {
			log.Printf("config: invalid CACHE_BREAKER_THRESHOLD %q, using default 5", threshStr)
		}
	}
	if cfg.CacheBreakerThreshold == 0 && os.Getenv("CACHE_BREAKER_THRESHOLD") == "" {
		cfg.CacheBreakerThreshold = 5
	}

	if batchStr := os.Getenv("WATCHDOG_BATCH_SIZE"); batchStr != "" {
		if n, err := parseInt(batchStr); err == nil && n > 0 {
			cfg.WatchdogBatchSize = n
		} else {
			log.Printf("config: invalid WATCHDOG_BATCH_SIZE %q (must be a positive integer), using default 100", batchStr)
		}
	}
	if cfg.WatchdogBatchSize == 0 {
		cfg.WatchdogBatchSize = 100
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.CacheTTLStr == "" {
		cfg.CacheTTLStr = "60s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.WriteRetryBaseDelayStr == "" {
		cfg.WriteRetryBaseDelayStr = "100ms"
	}
	if cfg.WriteRetryMaxDelayStr == "" {
		cfg.WriteRetryMaxDelayStr = "2s"
	}
	if cfg.CacheBreakerCooldownStr == "" {
		cfg.CacheBreakerCooldownStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.WatchdogIntervalStr == "" {
		cfg.WatchdogIntervalStr = "5m"
	}
	if cfg.WatchdogThresholdStr == "" {
		cfg.WatchdogThresholdStr = "30m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.CacheTTLStr); err == nil {
		cfg.CacheTTL = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.WriteRetryBaseDelayStr); err == nil {
		cfg.WriteRetryBaseDelay = d
	}
	if d, err := time.ParseDuration(cfg.WriteRetryMaxDelayStr); err == nil {
		cfg.WriteRetryMaxDelay = d
	}
	if d, err := time.ParseDuration(cfg.CacheBreakerCooldownStr); err == nil {
		cfg.CacheBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.WatchdogIntervalStr); err == nil {
		cfg.WatchdogInterval = d
	}
	if d, err := time.ParseDuration(cfg.WatchdogThresholdStr); err == nil {
		cfg.WatchdogThreshold = d
	}

	return cfg
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL           string `json:"database_url"`
		SQLitePath            string `json:"sqlite_path,omitempty"`
		RedisAddr             string `json:"redis_addr,omitempty"`
		HTTPAddr              string `json:"http_addr"`
		CacheTTL              string `json:"cache_ttl"`
		DBOpTimeout           string `json:"db_op_timeout"`
		DBMaxOpenConns        int    `json:"db_max_open_conns"`
		DBMaxIdleConns        int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime     string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime     string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout   string `json:"http_shutdown_timeout"`
		WriteToken            string `json:"write_token,omitempty"`
		WriteRetryMax         int    `json:"write_retry_max"`
		WriteRetryBaseDelay   string `json:"write_retry_base_delay"`
		WriteRetryMaxDelay    string `json:"write_retry_max_delay"`
		CacheBreakerThreshold int    `json:"cache_breaker_threshold"`
		CacheBreakerCooldown  string `json:"cache_breaker_cooldown"`
		MetricsEnabled        bool   `json:"metrics_enabled"`
		MetricsPath           string `json:"metrics_path"`
		MetricsPort           string `json:"metrics_port"`
		WatchdogEnabled       bool   `json:"watchdog_enabled"`
		WatchdogInterval      string `json:"watchdog_interval"`
		WatchdogThreshold     string `json:"watchdog_threshold"`
		WatchdogBatchSize     int    `json:"watchdog_batch_size"`
	}{
		DatabaseURL:           maskSecret(c.DatabaseURL),
		SQLitePath:            c.SQLitePath,
		RedisAddr:             c.RedisAddr,
		HTTPAddr:              c.HTTPAddr,
		CacheTTL:              c.CacheTTLStr,
		DBOpTimeout:           c.DBOpTimeoutStr,
		DBMaxOpenConns:        c.DBMaxOpenConns,
		DBMaxIdleConns:        c.DBMaxIdleConns,
		DBConnMaxLifetime:     c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:     c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:   c.HTTPShutdownTimeoutStr,
		WriteToken:            maskToken(c.WriteToken),
		WriteRetryMax:         c.WriteRetryMax,
		WriteRetryBaseDelay:   c.WriteRetryBaseDelayStr,
		WriteRetryMaxDelay:    c.WriteRetryMaxDelayStr,
		CacheBreakerThreshold: c.CacheBreakerThreshold,
		CacheBreakerCooldown:  c.CacheBreakerCooldownStr,
		MetricsEnabled:        c.MetricsEnabled,
		MetricsPath:           c.MetricsPath,
		MetricsPort:           c.MetricsPort,
		WatchdogEnabled:       c.WatchdogEnabled,
		WatchdogInterval:      c.WatchdogIntervalStr,
		WatchdogThreshold:     c.WatchdogThresholdStr,
		WatchdogBatchSize:     c.WatchdogBatchSize,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

func maskToken(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
