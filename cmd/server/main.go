package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"norelock.dev/fetchx/backend/internal/api"
	"norelock.dev/fetchx/backend/internal/config"
	"norelock.dev/fetchx/backend/internal/db/redis"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/services/feed"
	"norelock.dev/fetchx/backend/internal/services/media"
	"norelock.dev/fetchx/backend/internal/services/system"
	"norelock.dev/fetchx/backend/internal/utils"
	"norelock.dev/fetchx/backend/pkg/websocket"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Create a context that will be canceled on interrupt signal
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	warnings := config.ValidateAndFixConfig(cfg)

	// Initialize logger
	logger := utils.NewLogger(utils.LoggerOptions{
		Development:      cfg.Environment == "development",
		Level:            utils.ParseLevel(cfg.Logging.Level),
		OutputPaths:      cfg.Logging.OutputPaths,
		ErrorOutputPaths: cfg.Logging.ErrorOutputPaths,
	})
	defer logger.Sync()
	logger.Info("Starting FetchX server", "environment", cfg.Environment, "version", version)
	for _, warning := range warnings {
		logger.Warn("Configuration adjusted", "detail", warning)
	}
	logger.Debug("Effective configuration", "config", config.GetConfigString(cfg))

	metrics := system.NewMetricsService(logger)

	// Initialize Redis client when rotation state is shared
	var redisClient *redis.Client
	if cfg.Rotation.Backend == "redis" {
		redisClient, err = redis.NewClient(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", err)
		}
		defer redisClient.Close()
	}

	// Initialize providers
	providers := make([]media.Provider, 0, len(models.Sources))
	for _, source := range models.Sources {
		providerCfg := cfg.Provider(source)

		rotator, err := newRotator(redisClient, cfg.Rotation.KeyPrefix, source, providerCfg.Keys)
		if err != nil {
			logger.Fatal("Failed to initialize credential rotation", err, "provider", string(source))
		}

		opts := media.ProviderOptions{
			BaseURL:  providerCfg.BaseURL,
			Timeout:  providerCfg.Timeout,
			Policy:   media.RetryPolicy{MaxAttempts: providerCfg.MaxAttempts},
			Recorder: metrics,
		}

		switch source {
		case models.SourcePexels:
			providers = append(providers, media.NewPexelsProvider(rotator, opts, logger))
		case models.SourceUnsplash:
			providers = append(providers, media.NewUnsplashProvider(rotator, opts, logger))
		case models.SourcePixabay:
			providers = append(providers, media.NewPixabayProvider(rotator, opts, logger))
		}
		logger.Info("Provider configured", "provider", string(source), "keys", rotator.Len())
	}

	// Initialize aggregation
	interleaver, err := media.NewInterleaver(cfg.Aggregation.Interleave)
	if err != nil {
		logger.Fatal("Invalid interleave policy", err)
	}

	aggregator := media.NewAggregator(providers, logger,
		media.WithInterleaver(interleaver),
		media.WithLimits(media.Limits{
			UnsplashMaxPages: cfg.Limits.UnsplashMaxPages,
			UnsplashPerPage:  cfg.Limits.UnsplashPerPage,
			PixabayMaxItems:  cfg.Limits.PixabayMaxItems,
		}),
		media.WithRecorder(metrics),
	)
	orchestrator := feed.NewOrchestrator(aggregator, feed.Options{
		DefaultPerPage:  cfg.Aggregation.DefaultPerPage,
		RelatedMaxPages: cfg.Aggregation.RelatedMaxPages,
	}, logger)

	// Initialize system services
	var pinger system.Pinger
	if redisClient != nil {
		pinger = redisClient
	}
	healthService := system.NewHealthService(pinger, metrics, logger, system.HealthServiceConfig{
		Version:     version,
		Environment: cfg.Environment,
	})

	var limiter *utils.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = utils.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	}

	maintenanceService := system.NewMaintenanceService(system.DefaultMaintenanceConfig(), logger)
	if limiter != nil {
		maintenanceService.RegisterTask("ratelimit_cleanup", cfg.RateLimit.IdleTTL, func(context.Context) error {
			if n := limiter.Cleanup(); n > 0 {
				logger.Debug("Dropped idle rate limiters", "count", n)
			}
			return nil
		})
	}

	pool := websocket.NewPool()

	// Initialize API router
	router := api.NewRouter(api.Dependencies{
		Aggregator:    aggregator,
		Orchestrator:  orchestrator,
		HealthService: healthService,
		Metrics:       metrics,
		Limiter:       limiter,
		Pool:          pool,
	}, cfg, logger)

	maintenanceService.Start(ctx)
	healthService.Start(ctx)

	// Create HTTP server for API
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", err)
	}

	// Hijacked WebSocket connections are not closed by Shutdown
	pool.Close()

	maintenanceService.Stop()

	logger.Info("Server shutdown complete")
}

// newRotator keeps the rotation cursor in Redis when a client is given and
// in process memory otherwise.
func newRotator(client *redis.Client, prefix string, source models.Source, keys []string) (media.Rotator, error) {
	if client != nil {
		return redis.NewCursorRotator(client, prefix, string(source), keys)
	}
	return media.NewMemoryRotator(keys)
}
