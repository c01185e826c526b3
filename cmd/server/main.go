package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/api"
	"github.com/irfndi/kdp-pulse/internal/api/handlers"
	"github.com/irfndi/kdp-pulse/internal/cache"
	"github.com/irfndi/kdp-pulse/internal/config"
	"github.com/irfndi/kdp-pulse/internal/database"
	"github.com/irfndi/kdp-pulse/internal/logging"
	"github.com/irfndi/kdp-pulse/internal/services"
	"github.com/irfndi/kdp-pulse/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		File:        cfg.Logging,
	})
	logrus.SetLevel(logger.GetLevel())
	logrus.SetFormatter(logger.Formatter)

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.Telemetry, cfg.Environment, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown tracing")
		}
	}()

	// Initialize database
	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	pool := database.NewTracedPool(db.Pool)
	if err := database.Migrate(context.Background(), pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	samples := database.NewSampleRepository(pool)
	listings := database.NewListingRepository(pool)
	snapshots := database.NewSnapshotRepository(pool)
	users := database.NewUserRepository(pool)
	feedback := database.NewFeedbackRepository(pool)
	ledgers := cache.NewRedisFeedbackStore(redis.Client, logger)

	generator := services.NewSnapshotGenerator(generatorConfig(cfg), samples, listings, users, snapshots, logger)
	notifier := services.NewNotificationService(cfg.Telegram.BotToken, logger)
	if notifier.Enabled() {
		generator.WithDigest(ledgers, notifier)
	}
	if err := generator.Start(); err != nil {
		return fmt.Errorf("failed to start snapshot generator: %w", err)
	}
	defer generator.Stop()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Dependencies{
		Snapshots:     snapshots,
		Ledgers:       ledgers,
		Events:        feedback,
		Weights:       users,
		Generator:     generator,
		Ranker:        services.NewRelevanceRanker(cfg.Engine.NetImpactNudge),
		SnapshotLimit: cfg.Engine.SnapshotLimit,
		HealthChecks: map[string]handlers.HealthChecker{
			"database": db,
			"redis":    redis,
		},
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      logger,
	})

	srv := newHTTPServer(cfg.Server, router)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logging.LogStartup(logger, telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logging.LogShutdown(logger, telemetry.ServiceName, sig.String())
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func generatorConfig(cfg *config.Config) services.SnapshotGeneratorConfig {
	return services.SnapshotGeneratorConfig{
		WindowDays:     cfg.Engine.WindowDays,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		ListingTimeout: cfg.Engine.ListingTimeoutDuration(),
		ReadsPerSecond: cfg.Engine.ReadsPerSecond,
		AlgoVersion:    cfg.Engine.AlgoVersion,
		NetImpactNudge: cfg.Engine.NetImpactNudge,
		Enabled:        cfg.Scheduler.Enabled,
		Schedule:       cfg.Scheduler.Cron,
		Timezone:       cfg.Scheduler.Timezone,
	}
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
