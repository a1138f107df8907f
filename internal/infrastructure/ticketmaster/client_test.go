package ticketmaster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	rediscache "github.com/baechuer/cityevents/services/discovery-service/internal/infrastructure/caching/redis"
	"github.com/baechuer/cityevents/services/discovery-service/internal/retry"
)

const pageJSON = `{"_embedded":{"events":[{"id":"e1","name":"Coldplay","url":"https://tm/e1"}]},"page":{"size":24,"totalElements":1,"totalPages":1,"number":0}}`

func newTestClient(t *testing.T, baseURL string, delays *[]time.Duration) *Client {
	t.Helper()
	rc := retry.DefaultConfig()
	rc.Sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return New(Config{BaseURL: baseURL, APIKey: "secret", Retry: rc}, nil, zerolog.Nop())
}

func TestClient_SearchEvents(t *testing.T) {
	t.Run("should_inject_api_key_and_decode_page", func(t *testing.T) {
		var got url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, SearchPath, r.URL.Path)
			got = r.URL.Query()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(pageJSON))
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		page, err := c.SearchEvents(context.Background(), url.Values{"keyword": {"coldplay"}, "apikey": {"client-supplied"}})
		require.NoError(t, err)
		require.Len(t, page.Events(), 1)
		assert.Equal(t, "e1", page.Events()[0].ID)
		assert.Equal(t, "secret", got.Get("apikey"))
		assert.Len(t, got["apikey"], 1)
		assert.Equal(t, "coldplay", got.Get("keyword"))
		assert.Empty(t, delays)
	})

	t.Run("should_retry_5xx_then_succeed", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(pageJSON))
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		page, err := c.SearchEvents(context.Background(), url.Values{})
		require.NoError(t, err)
		assert.Len(t, page.Events(), 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
	})

	t.Run("should_retry_429", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(pageJSON))
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		_, err := c.SearchEvents(context.Background(), url.Values{})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("should_fail_with_upstream_error_after_budget", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		_, err := c.SearchEvents(context.Background(), url.Values{})
		require.Error(t, err)

		var appErr *domain.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, domain.CodeUpstream, appErr.Code)
		assert.Equal(t, "HTTP 503", appErr.Message)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("should_not_retry_400", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		_, err := c.SearchEvents(context.Background(), url.Values{})

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Empty(t, delays)
	})

	t.Run("should_reject_malformed_json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"_embedded":`))
		}))
		defer srv.Close()

		var delays []time.Duration
		c := newTestClient(t, srv.URL, &delays)

		_, err := c.SearchEvents(context.Background(), url.Values{})
		var appErr *domain.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, domain.CodeUpstream, appErr.Code)
	})
}

func TestClient_GetEvent(t *testing.T) {
	t.Run("should_fetch_by_id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/discovery/v2/events/G5v0Z9.json", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"G5v0Z9","name":"Hamilton","info":"No cameras"}`))
		}))
		defer srv.Close()

		var delays []time.Duration
		ev, err := newTestClient(t, srv.URL, &delays).GetEvent(context.Background(), "G5v0Z9")
		require.NoError(t, err)
		assert.Equal(t, "Hamilton", ev.Name)
		assert.Equal(t, "No cameras", ev.Info)
	})

	t.Run("should_map_404_to_not_found_without_retry", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		var delays []time.Duration
		_, err := newTestClient(t, srv.URL, &delays).GetEvent(context.Background(), "missing")

		var appErr *domain.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, domain.CodeNotFound, appErr.Code)
		assert.Equal(t, "HTTP 404", appErr.Message)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Empty(t, delays)
	})
}

func TestClient_MissingAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, zerolog.Nop())
	_, err := c.SearchEvents(context.Background(), url.Values{})

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.CodeConfig, appErr.Code)
	assert.Equal(t, "Missing Ticketmaster API key", appErr.Message)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var delays []time.Duration
	_, err := newTestClient(t, srv.URL, &delays).SearchEvents(ctx, url.Values{})
	assert.ErrorIs(t, err, context.Canceled)

	var appErr *domain.AppError
	assert.False(t, errors.As(err, &appErr))
	assert.Empty(t, delays)
}

func TestClient_TransportErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	var delays []time.Duration
	_, err := newTestClient(t, base, &delays).SearchEvents(context.Background(), url.Values{})
	require.Error(t, err)

	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Failed to fetch", appErr.Message)
	assert.NotContains(t, err.Error(), "secret")
	assert.Len(t, delays, 2)
}

func TestClient_UsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache, err := rediscache.New("redis://" + mr.Addr())
	require.NoError(t, err)
	defer cache.Close()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(pageJSON))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "secret", CacheTTL: time.Minute}, cache, zerolog.Nop())
	q := url.Values{"keyword": {"coldplay"}}

	first, err := c.SearchEvents(context.Background(), q)
	require.NoError(t, err)
	second, err := c.SearchEvents(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Events(), second.Events())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.SearchEvents(context.Background(), url.Values{"keyword": {"other"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestStatusError_Retryable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 500}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 504}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 401}).Retryable())
	assert.Equal(t, "HTTP 418", (&StatusError{StatusCode: 418}).Error())
}
