// Command server wires the IP intelligence aggregator's components
// together and runs the HTTP API: config -> dependency construction ->
// graceful run-until-signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itsneelabh/gomind/cache"
	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/db"
	"github.com/itsneelabh/gomind/instrumentation"
	"github.com/itsneelabh/gomind/llmintel"
	"github.com/itsneelabh/gomind/lookup"
	"github.com/itsneelabh/gomind/manager"
	"github.com/itsneelabh/gomind/providers"
	"github.com/itsneelabh/gomind/ratelimit"
	"github.com/itsneelabh/gomind/resilience"
	"github.com/itsneelabh/gomind/server"
)

func main() {
	cfg, err := core.NewConfig()
	if err != nil {
		panicExit("loading configuration", err)
	}

	logger := core.NewProductionLogger(cfg.Logging, cfg.ServiceName)
	logger.Info("starting ipintel", map[string]interface{}{"port": cfg.Port})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProvider, err := instrumentation.New(ctx, instrumentation.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})
	if err != nil {
		logger.Warn("telemetry disabled: failed to initialize", map[string]interface{}{"error": err.Error()})
		otelProvider = nil
	}

	var telemetry core.Telemetry = &core.NoOpTelemetry{}
	var providerMetrics providers.MetricsRecorder
	var breakerMetrics resilience.MetricsCollector
	if otelProvider != nil {
		telemetry = otelProvider
		providerMetrics = otelProvider
		breakerMetrics = otelProvider
	}

	redisClient, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL: cfg.Redis.URL,
		DB:       0,
		Logger:   componentLogger(logger, "ipintel/redis"),
	})
	if err != nil {
		panicExit("connecting to redis", err)
	}
	cacheLayer := cache.New(redisClient, componentLogger(logger, "ipintel/cache"))

	var store *db.Store
	if cfg.Postgres.DSN != "" {
		store, err = db.Open(cfg.Postgres.DSN, componentLogger(logger, "ipintel/db"))
		if err != nil {
			panicExit("connecting to postgres", err)
		}
	} else {
		logger.Warn("no IPINTEL_POSTGRES_DSN/DATABASE_URL configured, running without a durable tier", nil)
	}

	fleet := providers.BuildFleet(cfg.Providers, cfg.Breaker, componentLogger(logger, "ipintel/providers"), providerMetrics, breakerMetrics)

	mgr := manager.New(fleet.Providers, cfg.Providers.Concurrency, cfg.Providers.GlobalTimeoutMs, componentLogger(logger, "ipintel/manager"))

	enricher := llmintel.New(cfg.LLM, componentLogger(logger, "ipintel/llmintel"))

	limiter := ratelimit.New(cfg.RateLimit.IPsPerMinute, componentLogger(logger, "ipintel/ratelimit"))
	defer limiter.Close()

	lookupSvc := lookup.New(cacheLayer, store, mgr, fleet.TrustRank, enricher, lookup.Config{
		CacheTTLSeconds:              cfg.Lookup.CacheTTLSeconds,
		CacheRefreshThresholdSeconds: cfg.Lookup.CacheRefreshThresholdSeconds,
		GlobalTimeoutMs:              cfg.Providers.GlobalTimeoutMs,
	}, componentLogger(logger, "ipintel/lookup"))

	serverCfg := server.DefaultConfig()
	serverCfg.Port = cfg.Port
	serverCfg.ServiceName = cfg.ServiceName

	httpServer := server.New(serverCfg, lookupSvc, fleet, cacheLayer, store, limiter, componentLogger(logger, "ipintel/server"), telemetry)

	go startCleanupLoop(ctx, store, componentLogger(logger, "ipintel/db"))

	if err := httpServer.Start(ctx); err != nil {
		logger.Error("http server exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("ipintel stopped", nil)
}

// startCleanupLoop periodically purges expired database rows, spec.md
// §6's housekeeping job.
func startCleanupLoop(ctx context.Context, store *db.Store, logger core.Logger) {
	if store == nil {
		return
	}
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("expired-record cleanup failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if deleted > 0 {
				logger.Info("cleaned up expired records", map[string]interface{}{"count": deleted})
			}
		}
	}
}

func componentLogger(logger core.Logger, component string) core.Logger {
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return logger
}

func panicExit(op string, err error) {
	println(op + ": " + err.Error())
	os.Exit(1)
}
