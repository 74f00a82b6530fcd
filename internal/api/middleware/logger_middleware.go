// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"norelock.dev/fetchx/backend/internal/utils"
)

// HTTPMetrics receives per-request measurements. *system.MetricsService
// implements it.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
	IncHTTPRequestsInProgress(method string)
	DecHTTPRequestsInProgress(method string)
}

// LoggerMiddleware handles request logging for the API.
type LoggerMiddleware struct {
	logger  *utils.Logger
	metrics HTTPMetrics
}

// NewLoggerMiddleware creates a new logger middleware. metrics may be nil.
func NewLoggerMiddleware(logger *utils.Logger, metrics HTTPMetrics) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger:  logger.Named("http"),
		metrics: metrics,
	}
}

// Logger is a middleware that logs HTTP requests and records their metrics.
func (m *LoggerMiddleware) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// The wrapper keeps Hijacker and Flusher so WebSocket upgrades pass through.
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		if m.metrics != nil {
			m.metrics.IncHTTPRequestsInProgress(r.Method)
			defer m.metrics.DecHTTPRequestsInProgress(r.Method)
		}

		// Process the request
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			// Hijacked or nothing written
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := routePattern(r)

		if m.metrics != nil {
			m.metrics.ObserveHTTPRequest(r.Method, route, status, duration)
		}

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
			"ip", utils.GetRequestIP(r),
			"requestId", chimiddleware.GetReqID(r.Context()),
		}
		if status >= http.StatusInternalServerError {
			m.logger.Warn("HTTP request", fields...)
			return
		}
		m.logger.Info("HTTP request", fields...)
	})
}

// routePattern returns the matched chi pattern so metric labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
