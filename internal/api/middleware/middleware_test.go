package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/fetchx/backend/internal/utils"
)

type observed struct {
	method, route string
	status        int
}

type fakeMetrics struct {
	mu       sync.Mutex
	requests []observed
	inFlight int
	peak     int
}

func (f *fakeMetrics) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, observed{method, route, status})
}

func (f *fakeMetrics) IncHTTPRequestsInProgress(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
}

func (f *fakeMetrics) DecHTTPRequestsInProgress(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func TestLoggerRecordsRoutePattern(t *testing.T) {
	metrics := &fakeMetrics{}
	r := chi.NewRouter()
	r.Use(NewLoggerMiddleware(utils.NewNopLogger(), metrics).Logger)
	r.Get("/metadata/{provider}/{type}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata/pexels/images?query=cats", nil))

	require.Len(t, metrics.requests, 1)
	assert.Equal(t, observed{http.MethodGet, "/metadata/{provider}/{type}", http.StatusTeapot}, metrics.requests[0])
	assert.Equal(t, 1, metrics.peak)
	assert.Zero(t, metrics.inFlight)
}

func TestLoggerDefaultsStatusToOK(t *testing.T) {
	metrics := &fakeMetrics{}
	handler := NewLoggerMiddleware(utils.NewNopLogger(), metrics).Logger(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, metrics.requests, 1)
	assert.Equal(t, http.StatusOK, metrics.requests[0].status)
	assert.Equal(t, "unmatched", metrics.requests[0].route)
}

func TestRecoveryHidesPanicDetail(t *testing.T) {
	handler := NewRecoveryMiddleware(utils.NewNopLogger()).Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("key abc leaked")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.NotContains(t, rec.Body.String(), "abc")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", nil, "https://app.example.com", "*"},
		{"exact match", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"prefix match", []string{"http://localhost:*"}, "http://localhost:5173", "http://localhost:5173"},
		{"blocked", []string{"https://app.example.com"}, "https://evil.example.com", ""},
		{"no origin", []string{"https://app.example.com"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cors := NewCORSMiddleware(DefaultCORSConfig(tt.origins...), utils.NewNopLogger())
			req := httptest.NewRequest(http.MethodGet, "/media", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec := httptest.NewRecorder()
			cors.CORS(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.want != "", cors.AllowsOrigin(tt.origin))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	cors := NewCORSMiddleware(DefaultCORSConfig(), utils.NewNopLogger())
	called := false
	handler := cors.CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/media", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Session-ID")
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}
