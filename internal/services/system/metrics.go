// Package system provides system-level services for monitoring and health.
package system

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/services/media"
	"norelock.dev/fetchx/backend/internal/utils"
)

const metricsNamespace = "fetchx"

// MetricsService provides application metrics collection functionality.
// Each instance owns its registry, so several can coexist in one process.
type MetricsService struct {
	logger   *utils.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsInProgress *prometheus.GaugeVec

	// WebSocket metrics
	wsConnectionsActive prometheus.Gauge
	wsMessagesTotal     *prometheus.CounterVec

	// Upstream metrics
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	keyRotationsTotal       *prometheus.CounterVec
	keyExhaustionsTotal     *prometheus.CounterVec
	aggregateFailuresTotal  *prometheus.CounterVec

	mu            sync.RWMutex
	lastExhausted map[models.Source]time.Time
}

var _ media.Recorder = (*MetricsService)(nil)

// NewMetricsService creates a new metrics service.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsService{
		logger:        logger.Named("metrics_service"),
		registry:      registry,
		lastExhausted: make(map[models.Source]time.Time),
	}

	factory := promauto.With(registry)
	m.initHTTPMetrics(factory)
	m.initWebSocketMetrics(factory)
	m.initUpstreamMetrics(factory)

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the service's registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// initHTTPMetrics initializes HTTP-related metrics.
func (m *MetricsService) initHTTPMetrics(factory promauto.Factory) {
	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.httpRequestsInProgress = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_in_progress",
			Help:      "Number of HTTP requests currently in progress",
		},
		[]string{"method"},
	)
}

// initWebSocketMetrics initializes WebSocket-related metrics.
func (m *MetricsService) initWebSocketMetrics(factory promauto.Factory) {
	m.wsConnectionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ws_connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	m.wsMessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)
}

// initUpstreamMetrics initializes provider-related metrics.
func (m *MetricsService) initUpstreamMetrics(factory promauto.Factory) {
	m.upstreamRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream provider requests",
		},
		[]string{"provider", "status"},
	)

	m.upstreamRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of upstream provider requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	m.keyRotationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "key_rotations_total",
			Help:      "Total number of credential rotations",
		},
		[]string{"provider"},
	)

	m.keyExhaustionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "key_exhaustions_total",
			Help:      "Total number of calls that ran out of credentials",
		},
		[]string{"provider"},
	)

	m.aggregateFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "aggregate_failures_total",
			Help:      "Total number of provider calls dropped from aggregate results",
		},
		[]string{"provider", "subtype", "reason"},
	)
}

// ObserveHTTPRequest records a served HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncHTTPRequestsInProgress increments the in-flight gauge.
func (m *MetricsService) IncHTTPRequestsInProgress(method string) {
	m.httpRequestsInProgress.WithLabelValues(method).Inc()
}

// DecHTTPRequestsInProgress decrements the in-flight gauge.
func (m *MetricsService) DecHTTPRequestsInProgress(method string) {
	m.httpRequestsInProgress.WithLabelValues(method).Dec()
}

// IncWSConnectionsActive increments the active WebSocket connections gauge.
func (m *MetricsService) IncWSConnectionsActive() {
	m.wsConnectionsActive.Inc()
}

// DecWSConnectionsActive decrements the active WebSocket connections gauge.
func (m *MetricsService) DecWSConnectionsActive() {
	m.wsConnectionsActive.Dec()
}

// ObserveWSMessage records a WebSocket message.
func (m *MetricsService) ObserveWSMessage(direction, msgType string) {
	m.wsMessagesTotal.WithLabelValues(direction, msgType).Inc()
}

// UpstreamRequest implements media.Recorder.
func (m *MetricsService) UpstreamRequest(provider models.Source, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequestsTotal.WithLabelValues(string(provider), label).Inc()
	m.upstreamRequestDuration.WithLabelValues(string(provider)).Observe(duration.Seconds())
}

// KeyRotated implements media.Recorder.
func (m *MetricsService) KeyRotated(provider models.Source) {
	m.keyRotationsTotal.WithLabelValues(string(provider)).Inc()
}

// KeysExhausted implements media.Recorder.
func (m *MetricsService) KeysExhausted(provider models.Source) {
	m.keyExhaustionsTotal.WithLabelValues(string(provider)).Inc()

	m.mu.Lock()
	m.lastExhausted[provider] = time.Now()
	m.mu.Unlock()
}

// AggregateFailure implements media.Recorder.
func (m *MetricsService) AggregateFailure(provider models.Source, subtype string, reason models.FailureReason) {
	m.aggregateFailuresTotal.WithLabelValues(string(provider), subtype, string(reason)).Inc()
}

// LastExhausted returns when provider last ran out of credentials, or the
// zero time if it never has.
func (m *MetricsService) LastExhausted(provider models.Source) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastExhausted[provider]
}
