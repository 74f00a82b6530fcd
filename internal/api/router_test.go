package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/fetchx/backend/internal/config"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/services/feed"
	"norelock.dev/fetchx/backend/internal/services/media"
	"norelock.dev/fetchx/backend/internal/services/system"
	"norelock.dev/fetchx/backend/internal/utils"
	"norelock.dev/fetchx/backend/pkg/websocket"
)

// newUpstream serves canned responses for every provider endpoint.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"page":1,"per_page":1,"total_results":120,"photos":[
			{"id":1,"width":10,"height":10,"src":{"original":"https://img.pexels.test/1.jpg"}}]}`)
	})
	mux.HandleFunc("/videos/search", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"page":1,"per_page":1,"total_results":5,"videos":[]}`)
	})
	mux.HandleFunc("/search/photos", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"total":9000,"total_pages":300,"results":[
			{"id":"u1","width":10,"height":10,"urls":{"full":"https://img.unsplash.test/u1.jpg"},"tags":[{"title":"cat"}]}]}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		id := map[string]int{"photo": 10, "illustration": 11, "vector": 12}[r.URL.Query().Get("image_type")]
		write(w, fmt.Sprintf(`{"total":700,"totalHits":700,"hits":[
			{"id":%d,"tags":"cat, pet","largeImageURL":"https://img.pixabay.test/%d.jpg"}]}`, id, id))
	})
	mux.HandleFunc("/api/videos/", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"total":3,"totalHits":3,"hits":[]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, configure func(*config.Config)) *Router {
	t.Helper()
	upstream := newUpstream(t)
	logger := utils.NewNopLogger()
	metrics := system.NewMetricsService(logger)

	rotator := func() media.Rotator {
		r, err := media.NewMemoryRotator([]string{"test-key"})
		require.NoError(t, err)
		return r
	}
	opts := media.ProviderOptions{BaseURL: upstream.URL, Timeout: 5 * time.Second, Recorder: metrics}

	aggregator := media.NewAggregator([]media.Provider{
		media.NewPexelsProvider(rotator(), opts, logger),
		media.NewUnsplashProvider(rotator(), opts, logger),
		media.NewPixabayProvider(rotator(), opts, logger),
	}, logger, media.WithInterleaver(media.RoundRobinInterleaver{}), media.WithRecorder(metrics))

	cfg := &config.Config{Environment: "test"}
	if configure != nil {
		configure(cfg)
	}

	var limiter *utils.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = utils.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, time.Minute)
	}

	return NewRouter(Dependencies{
		Aggregator:   aggregator,
		Orchestrator: feed.NewOrchestrator(aggregator, feed.Options{RelatedMaxPages: 2}, logger),
		HealthService: system.NewHealthService(nil, metrics, logger, system.HealthServiceConfig{
			Version:     "test",
			Environment: cfg.Environment,
		}),
		Metrics: metrics,
		Limiter: limiter,
		Pool:    websocket.NewPool(),
	}, cfg, logger)
}

func get(t *testing.T, handler http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouterSearch(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := get(t, router, "/search?query=cats")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 120+3750+500, body["maxDownloadLimit"])
	assert.Equal(t, false, body["degraded"])
}

func TestRouterSearchVideos(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := get(t, router, "/search?query=cats&type=videos")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5+3, body["maxDownloadLimit"])
	assert.Equal(t, false, body["degraded"])
}

func TestRouterMetadata(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := get(t, router, "/metadata/unsplash/images?query=cats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "photos", body["type"])
	assert.EqualValues(t, 30, body["perPage"])
	assert.EqualValues(t, 9000, body["total"])

	rec, _ = get(t, router, "/metadata/unsplash/videos?query=cats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterMedia(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := get(t, router, "/media?query=cats")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))
	items, _ := body["items"].([]any)
	assert.Len(t, items, 5)
	assert.Equal(t, false, body["degraded"])
}

func TestRouterOperationalRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(system.StatusUp), body["status"])

	rec, _ = get(t, router, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)

	get(t, router, "/search?query=cats")
	rec, _ = get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fetchx_http_requests_total")
}

func TestRouterRateLimitsUpstreamRoutesOnly(t *testing.T) {
	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RPS = 0.001
		cfg.RateLimit.Burst = 1
	})

	rec, _ := get(t, router, "/search?query=cats")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := get(t, router, "/search?query=cats")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotNil(t, body["error"])

	for range 3 {
		rec, _ = get(t, router, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRouterRateLimitKeysOnPeerAddress(t *testing.T) {
	limited := func(trustProxy bool) []int {
		router := newTestRouter(t, func(cfg *config.Config) {
			cfg.Server.TrustProxy = trustProxy
			cfg.RateLimit.Enabled = true
			cfg.RateLimit.RPS = 0.001
			cfg.RateLimit.Burst = 1
		})

		codes := make([]int, 0, 3)
		for i := range 3 {
			req := httptest.NewRequest(http.MethodGet, "/search?query=cats", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		return codes
	}

	// A client rotating X-Forwarded-For still shares one bucket.
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, limited(false))
	// Behind a trusted proxy every forwarded client gets its own bucket.
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusOK}, limited(true))
}

func TestRouterRelatedStream(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, nil))
	t.Cleanup(srv.Close)

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/related", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	seed := models.MediaItem{ID: "u1", Source: models.SourceUnsplash, Type: models.KindImage, Tags: []string{"cat"}}
	require.NoError(t, conn.WriteJSON(map[string]any{"id": "r1", "action": "related", "seed": seed}))

	var batch, done websocket.Envelope
	require.NoError(t, conn.ReadJSON(&batch))
	require.NoError(t, conn.ReadJSON(&done))

	assert.Equal(t, "batch", batch.Type)
	items := batch.Data.(map[string]any)["items"].([]any)
	// The seed itself is never repeated.
	assert.Len(t, items, 4)
	assert.Equal(t, "done", done.Type)
}
