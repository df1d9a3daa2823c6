package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/shelf/pkg/config"
	"github.com/platinummonkey/shelf/pkg/httputil"
	"github.com/platinummonkey/shelf/pkg/items"
	"github.com/platinummonkey/shelf/pkg/memberships"
	"github.com/platinummonkey/shelf/pkg/observability"
	"github.com/platinummonkey/shelf/pkg/storage/postgres"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info("starting shelf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Database
	cm, err := postgres.NewConnectionManager(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)
	db := cm.Primary()

	if err := items.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("item migrations failed")
		os.Exit(1)
	}
	if err := memberships.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("membership migrations failed")
		os.Exit(1)
	}

	// Optional permission cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = postgres.NewRedisClient(cfg.Redis.Client)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
	}

	// Domain wiring
	accounts := memberships.MembersOnly()
	itemStore := items.NewStore(db)
	membershipStore := memberships.NewStore(db)
	visibilityStore := memberships.NewVisibilityStore(db)
	requestStore := memberships.NewRequestStore(db)
	resolver := memberships.NewResolver(itemStore, membershipStore, visibilityStore, accounts, metrics)

	var frontResolver memberships.PermissionResolver = resolver
	var invalidator memberships.CacheInvalidator
	if redisClient != nil {
		cached := memberships.NewCachedResolver(resolver, redisClient, cfg.Redis.TTL, logger, metrics)
		frontResolver = cached
		invalidator = cached
	}

	service := memberships.NewService(memberships.ServiceConfig{
		DB:          db,
		Items:       itemStore,
		Memberships: membershipStore,
		Visibility:  visibilityStore,
		Resolver:    resolver,
		Accounts:    accounts,
		Requests:    requestStore,
		Notifier:    memberships.NewLogNotifier(logger),
		Cache:       invalidator,
		Logger:      logger,
		Metrics:     metrics,
	})

	recycler := items.NewRecycler(db, itemStore, logger, metrics)

	// Retention sweeper
	sweeper := items.NewSweeper(itemStore, cfg.Retention.Window, cfg.Retention.Schedule, logger, metrics)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Error("failed to start retention sweeper")
		os.Exit(1)
	}

	// HTTP API
	router := mux.NewRouter()
	handlers := memberships.NewHandlers(service, itemStore, recycler, frontResolver, requestStore, logger)
	handlers.RegisterRoutes(router)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1<<20),
	)
	var handler http.Handler = chain(router)
	if metrics != nil {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient, version)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			cancel()
		}
	}()

	sm := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("health server", healthServer.Shutdown)
	sm.RegisterShutdownFunc("retention sweeper", func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	sm.RegisterShutdownFunc("database", func(context.Context) error {
		return cm.Close()
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		sm.RegisterShutdownFunc("opentelemetry", func(shutdownCtx context.Context) error {
			return observability.ShutdownOTel(shutdownCtx, providers, logger)
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
