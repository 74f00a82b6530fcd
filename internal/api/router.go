// Package api provides the HTTP API for the application.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"norelock.dev/fetchx/backend/internal/api/handlers"
	appMiddleware "norelock.dev/fetchx/backend/internal/api/middleware"
	"norelock.dev/fetchx/backend/internal/config"
	"norelock.dev/fetchx/backend/internal/services/feed"
	"norelock.dev/fetchx/backend/internal/services/media"
	"norelock.dev/fetchx/backend/internal/services/system"
	"norelock.dev/fetchx/backend/internal/utils"
	"norelock.dev/fetchx/backend/pkg/websocket"
)

// Router is the main HTTP router for the API.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// Dependencies holds the services the router exposes.
type Dependencies struct {
	Aggregator    *media.Aggregator
	Orchestrator  *feed.Orchestrator
	HealthService *system.HealthService
	Metrics       *system.MetricsService
	// Limiter may be nil when rate limiting is disabled
	Limiter *utils.RateLimiter
	Pool    *websocket.Pool
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies, cfg *config.Config, logger *utils.Logger) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	// Create middleware
	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger, deps.Metrics)
	corsMiddleware := appMiddleware.NewCORSMiddleware(appMiddleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...), apiLogger)

	// Create handlers
	mediaHandler := handlers.NewMediaHandler(deps.Aggregator, deps.Aggregator, deps.Orchestrator, apiLogger)
	healthHandler := handlers.NewHealthHandler(apiLogger, deps.HealthService)
	feedHandler := handlers.NewFeedHandler(
		deps.Orchestrator,
		deps.Pool,
		websocketConfig(cfg),
		corsMiddleware.AllowsOrigin,
		deps.Metrics,
		apiLogger,
	)

	// Apply global middleware
	r.Use(middleware.RequestID)
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(recoveryMiddleware.Recovery)
	r.Use(loggerMiddleware.Logger)
	r.Use(corsMiddleware.CORS)
	r.Use(middleware.Heartbeat("/ping"))

	// Operational routes
	r.Group(func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/health/details", healthHandler.DetailedCheck)
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	})

	// Upstream-backed routes
	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(utils.RateLimitMiddleware(deps.Limiter, utils.RouteKeyFunc))
		}

		r.Get("/search", mediaHandler.Search)
		r.Get("/metadata/{provider}/{type}", mediaHandler.Metadata)
		r.Get("/media", mediaHandler.Media)
		r.Get("/ws/related", feedHandler.Related)
	})

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}

func websocketConfig(cfg *config.Config) websocket.Config {
	wsConfig := websocket.DefaultConfig()
	if cfg.WebSocket.MaxMessageSize > 0 {
		wsConfig.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	}
	if cfg.WebSocket.WriteWait > 0 {
		wsConfig.WriteWait = cfg.WebSocket.WriteWait
	}
	if cfg.WebSocket.PongWait > 0 {
		wsConfig.PongWait = cfg.WebSocket.PongWait
	}
	if cfg.WebSocket.PingPeriod > 0 {
		wsConfig.PingPeriod = cfg.WebSocket.PingPeriod
	}
	return wsConfig
}
