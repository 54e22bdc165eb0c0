package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flightops/flightops/internal/api"
	"github.com/flightops/flightops/internal/config"
	"github.com/flightops/flightops/internal/flights"
	"github.com/flightops/flightops/pkg/cache"
	"github.com/flightops/flightops/pkg/health"
	"github.com/flightops/flightops/pkg/observability"
	"github.com/flightops/flightops/pkg/tracking"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLIGHTOPS_CONFIG"), "path to config file")
	flag.Parse()

	logger := observability.NewStandardLogger("flightops")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Metrics
	var metrics observability.MetricsClient = observability.NewNoopMetricsClient()
	var promClient *observability.PrometheusMetricsClient
	if cfg.Metrics.Enabled {
		promClient = observability.NewPrometheusMetricsClient(cfg.Metrics.Namespace)
		metrics = promClient
	}
	defer func() { _ = metrics.Close() }()

	// Persistent store; the server still starts when it is down, the health
	// report surfaces the outage.
	db, err := sqlx.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to open database handle", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	defer func() { _ = db.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database unreachable at startup", map[string]interface{}{"error": err.Error()})
	}
	cancel()

	// Cache subsystem: one shared statistics tracker, strategy fixed here
	stats := cache.NewStatisticsTracker()
	cacheCfg := cfg.Cache
	cacheCfg.Logger = logger
	cacheCfg.Metrics = metrics
	cacheCfg.Stats = stats
	gateway := cache.NewGateway(cacheCfg)
	defer func() { _ = gateway.Close() }()

	logger.Info("cache gateway ready", map[string]interface{}{"mode": gateway.Mode()})

	// Health aggregation
	probes := []health.Probe{
		health.NewStoreProbe(db, "", cfg.Health.StoreLatencyThreshold),
		health.NewDistributedCacheProbe(gateway),
		health.NewCachePerformanceProbe(gateway),
		health.NewSystemResourceProbe(cfg.Health.DiskPath),
	}
	aggregator := health.NewAggregator(probes, logger,
		health.WithProbeTimeout(cfg.Health.ProbeTimeout),
		health.WithReportTTL(cfg.Health.ReportTTL),
		health.WithMetrics(metrics),
	)

	// Domain wiring
	tracker := tracking.NewTracker(metrics, logger)
	repo := flights.NewSQLRepository(db)
	flightService := flights.NewService(repo, gateway, tracker, logger)

	serverCfg := api.ServerConfig{
		ListenAddress: cfg.API.ListenAddress,
		ReadTimeout:   cfg.API.ReadTimeout,
		WriteTimeout:  cfg.API.WriteTimeout,
		IdleTimeout:   cfg.API.IdleTimeout,
		Environment:   cfg.Environment,
	}
	var promRegistry *prometheus.Registry
	if promClient != nil {
		promRegistry = promClient.Registry()
	}
	server := api.NewServer(serverCfg, flightService, gateway, aggregator, tracker, promRegistry, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
