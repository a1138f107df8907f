package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/cityevents/services/discovery-service/internal/application/discovery"
	"github.com/baechuer/cityevents/services/discovery-service/internal/config"
	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/proxy"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/handlers"
)

type stubSource struct{}

func (stubSource) SearchEvents(ctx context.Context, q url.Values) (*domain.EventPage, error) {
	return &domain.EventPage{Embedded: &domain.EventList{Events: []domain.Event{{ID: "e1", Name: "Muse"}}}}, nil
}

func (stubSource) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return &domain.Event{ID: id, Name: "Muse"}, nil
}

type fixture struct {
	handler  http.Handler
	upstream *atomic.Int32
}

func newFixture(t *testing.T, cfg *config.Config) fixture {
	t.Helper()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(upstream.Close)

	tm, err := proxy.New(upstream.URL, "secret", ProxyPrefix)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := handlers.NewDiscoveryHandler(discovery.NewService(stubSource{}, nil, nil))
	z := handlers.NewHealthHandler(handlers.NewPingChecker("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))

	return fixture{handler: New(h, z, tm, rdb, cfg), upstream: &hits}
}

func defaultConfig() *config.Config {
	return &config.Config{
		RLEnabled:     true,
		RLLimit:       100,
		RLWindow:      time.Minute,
		ProxyRLLimit:  100,
		ProxyRLWindow: time.Minute,
	}
}

func TestRouter_Routing(t *testing.T) {
	f := newFixture(t, defaultConfig())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"discover", http.MethodGet, "/api/discover", http.StatusOK},
		{"featured", http.MethodGet, "/api/featured", http.StatusOK},
		{"search", http.MethodGet, "/api/search?q=muse", http.StatusOK},
		{"search_bad_page", http.MethodGet, "/api/search?page=x", http.StatusBadRequest},
		{"details", http.MethodGet, "/api/events/e1", http.StatusOK},
		{"proxy_wildcard", http.MethodGet, "/api/tm/discovery/v2/events.json?keyword=foo", http.StatusOK},
		{"proxy_query", http.MethodGet, "/api/tm?path=discovery/v2/events.json", http.StatusOK},
		{"proxy_missing_path", http.MethodGet, "/api/tm", http.StatusBadRequest},
		{"unknown_route", http.MethodGet, "/nope", http.StatusNotFound},
		{"write_not_routed", http.MethodPost, "/api/discover", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
		})
	}
	assert.Equal(t, int32(2), f.upstream.Load())
}

func TestRouter_ProxyQuota(t *testing.T) {
	cfg := defaultConfig()
	cfg.ProxyRLLimit = 1
	f := newFixture(t, cfg)

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tm/discovery/v2/events.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tm/discovery/v2/events.json", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, int32(1), f.upstream.Load())

	// view endpoints have their own limit
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/discover", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_IPLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RLLimit = 1
	f := newFixture(t, cfg)

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/featured", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/featured", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate_limited")

	// ops endpoints are outside /api
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
