package main

import (
	"log"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/config"
)

// logConfigWarnings flags configurations that are valid but risky in
// production. P0 warnings indicate likely incidents; P1 warnings indicate
// reduced visibility when one happens.
func logConfigWarnings(cfg *config.Config) {
	if cfg.WriteToken == "" {
		log.Println("WARNING [P0]: WRITE_TOKEN not set — the status write endpoint is open to any caller on the network")
	}

	if !cfg.MetricsEnabled {
		log.Println("WARNING [P1]: METRICS_ENABLED=false — retry exhaustion and cache failures will not be visible")
	}

	if !cfg.WatchdogEnabled {
		log.Println("WARNING [P1]: WATCHDOG_ENABLED=false — meetings stuck in_progress will go unnoticed")
	}

	if cfg.RedisAddr == "" {
		log.Println("INFO: REDIS_ADDR not set — every status read hits the durable store")
	}

	if cfg.SQLitePath != "" {
		log.Println("INFO: SQLITE_PATH set — running with the embedded store, single-node deployments only")
	}
}
