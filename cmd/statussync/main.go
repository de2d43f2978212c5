package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/api"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/cache"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/circuitbreaker"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/config"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/metrics"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/store/postgres"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/store/sqlite"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/watchdog"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("statussync: loaded environment from .env")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`statussync - meeting pipeline status tracker

Usage:
  statussync <command>

Commands:
  serve      Start the status API server
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required unless SQLITE_PATH is set)
  SQLITE_PATH               SQLite database file for the embedded store (mutually exclusive with DATABASE_URL)
  REDIS_ADDR                Redis address for the status cache (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  CACHE_TTL                 Cache entry time-to-live (default: "60s")
  WRITE_TOKEN               Bearer token required on status writes (optional)

  WRITE_RETRY_MAX           Max durable write attempts (default: "3")
  WRITE_RETRY_BASE_DELAY    Initial retry backoff (default: "100ms")
  WRITE_RETRY_MAX_DELAY     Retry backoff ceiling (default: "2s")

  CACHE_BREAKER_THRESHOLD   Consecutive cache failures before the breaker opens; 0 disables (default: "5")
  CACHE_BREAKER_COOLDOWN    Breaker cooldown before probing the cache again (default: "30s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  WATCHDOG_ENABLED          Enable stale in_progress watchdog (default: "false")
  WATCHDOG_INTERVAL         How often to scan for stale meetings (default: "5m")
  WATCHDOG_THRESHOLD        Age before an in_progress meeting is stale (default: "30m")
  WATCHDOG_BATCH_SIZE       Max stale meetings per scan (default: "100")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	driver, dsn := "postgres", cfg.DatabaseURL
	if cfg.SQLitePath != "" {
		driver, dsn = "sqlite", cfg.SQLitePath
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("statussync: db pool configured (driver=%s, max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		driver, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	var (
		trackerStore  tracker.Store
		watchdogStore watchdog.Store
	)
	if driver == "sqlite" {
		store := sqlite.New(db, cfg.DBOpTimeout)
		if err := store.EnsureSchema(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create sqlite schema: %v\n", err)
			return exitRuntimeError
		}
		trackerStore, watchdogStore = store, store
	} else {
		store := postgres.New(db, cfg.DBOpTimeout)
		trackerStore, watchdogStore = store, store
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("statussync: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("statussync: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("statussync: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("statussync: METRICS_ENABLED not set; metrics disabled")
	}

	trk := tracker.New(trackerStore).
		WithRetryPolicy(tracker.RetryPolicy{
			MaxAttempts:  cfg.WriteRetryMax,
			InitialDelay: cfg.WriteRetryBaseDelay,
			MaxDelay:     cfg.WriteRetryMaxDelay,
			Multiplier:   2.0,
			Jitter:       0.2,
		})
	if metricsSink != nil {
		trk = trk.WithMetrics(metricsSink)
	}

	// Wire the fast cache if Redis is configured
	var statusCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		statusCache = cache.NewRedisCache(redisClient)
		trk = trk.WithCache(statusCache, cfg.CacheTTL)
		if cfg.CacheBreakerThreshold > 0 {
			trk = trk.WithCacheBreaker(circuitbreaker.New(cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown))
			log.Printf("statussync: cache breaker enabled (threshold=%d, cooldown=%s)",
				cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown)
		}
		log.Printf("statussync: cache enabled (redis=%s, ttl=%s)", cfg.RedisAddr, cfg.CacheTTL)
	} else {
		log.Println("statussync: REDIS_ADDR not set; reads go straight to the store")
	}

	apiHandler := api.NewHandler(trk).WithHealthChecker(db)
	if statusCache != nil {
		apiHandler = apiHandler.WithCachePinger(statusCache)
	}
	if cfg.WriteToken != "" {
		apiHandler = apiHandler.WithWriteToken(cfg.WriteToken)
		log.Println("statussync: write token required on status writes")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("statussync: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("statussync: http server error: %v", err)
		}
	}()

	// Start watchdog if enabled
	var watchdogWg sync.WaitGroup
	var cancelWatchdog context.CancelFunc

	if cfg.WatchdogEnabled {
		var watchdogCtx context.Context
		watchdogCtx, cancelWatchdog = context.WithCancel(context.Background())
		wd := watchdog.New(
			watchdog.Config{
				Interval:  cfg.WatchdogInterval,
				Threshold: cfg.WatchdogThreshold,
				BatchSize: cfg.WatchdogBatchSize,
			},
			watchdogStore,
		)
		if metricsSink != nil {
			wd = wd.WithMetrics(metricsSink)
		}
		watchdogWg.Add(1)
		go func() {
			defer watchdogWg.Done()
			wd.Run(watchdogCtx)
		}()
		log.Printf("statussync: watchdog enabled (interval=%s, threshold=%s, batch=%d)",
			cfg.WatchdogInterval, cfg.WatchdogThreshold, cfg.WatchdogBatchSize)
	} else {
		log.Println("statussync: WATCHDOG_ENABLED not set; watchdog disabled")
	}

	log.Printf("statussync: started (http=%s, retry_max=%d)", cfg.HTTPAddr, cfg.WriteRetryMax)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("statussync: received signal %v, shutting down", received)

	// Phase 1: Stop accepting HTTP traffic; in-flight writes finish within the timeout
	log.Println("statussync: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("statussync: http server shutdown error: %v", err)
	}
	log.Println("statussync: http server stopped")

	// Phase 2: Stop watchdog
	if cancelWatchdog != nil {
		log.Println("statussync: stopping watchdog...")
		cancelWatchdog()
		watchdogWg.Wait()
		log.Println("statussync: watchdog stopped")
	}

	// Phase 3: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("statussync: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("statussync: metrics server shutdown error: %v", err)
		}
		log.Println("statussync: metrics server stopped")
	}

	log.Println("statussync: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("statussync version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
