package ticketmaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	"github.com/baechuer/cityevents/services/discovery-service/internal/retry"
	"github.com/baechuer/cityevents/services/discovery-service/internal/tracing"
)

const (
	SearchPath = "/discovery/v2/events.json"

	maxBodyBytes = 8 << 20
)

// ErrMissingAPIKey is returned before any network call when no key is configured.
var ErrMissingAPIKey = errors.New("missing ticketmaster api key")

// StatusError is a non-2xx/3xx upstream answer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.StatusCode) }

// Retryable reports whether the status is worth another attempt (429 or 5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Cache is the optional response cache. The redis client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
}

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Retry    *retry.Config
	CacheTTL time.Duration
}

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	retry    *retry.Config
	cache    Cache
	cacheTTL time.Duration
	lg       zerolog.Logger
}

// New builds the upstream client. cache may be nil.
func New(cfg Config, cache Cache, lg zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	rc := cfg.Retry
	if rc == nil {
		rc = retry.DefaultConfig()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:    rc,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		lg:       lg.With().Str("component", "ticketmaster_client").Logger(),
	}
}

// SearchEvents runs an events.json query. q must not carry the API key.
func (c *Client) SearchEvents(ctx context.Context, q url.Values) (*domain.EventPage, error) {
	var page domain.EventPage
	if err := c.getJSON(ctx, "search", SearchPath, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetEvent fetches one event by id. An unknown id is a not_found AppError.
func (c *Client) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var ev domain.Event
	path := "/discovery/v2/events/" + url.PathEscape(id) + ".json"
	if err := c.getJSON(ctx, "event", path, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, dest any) error {
	if c.apiKey == "" {
		return &domain.AppError{Code: domain.CodeConfig, Message: "Missing Ticketmaster API key", Err: ErrMissingAPIKey}
	}

	cacheKey := "tm:" + path + "?" + q.Encode()
	if c.cache != nil && c.cacheTTL > 0 {
		found, err := c.cache.Get(ctx, cacheKey, dest)
		if err != nil {
			c.lg.Warn().Err(err).Str("key", cacheKey).Msg("cache get failed")
		} else if found {
			cacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	}

	ctx, span := tracing.StartSpan(ctx, "ticketmaster."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("upstream.endpoint", endpoint), attribute.String("upstream.path", path))

	body, err := c.fetch(ctx, endpoint, path, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c.translate(ctx, err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		span.RecordError(err)
		return domain.ErrUpstream("Invalid upstream response", err)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, cacheKey, dest, c.cacheTTL); err != nil {
			c.lg.Warn().Err(err).Str("key", cacheKey).Msg("cache set failed")
		}
	}
	return nil
}

// fetch performs the GET with retries and returns the raw body of the first 2xx/3xx answer.
func (c *Client) fetch(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	params := url.Values{}
	for k, vs := range q {
		params[k] = append([]string(nil), vs...)
	}
	params.Set("apikey", c.apiKey)
	u.RawQuery = params.Encode()

	log := logger.Ctx(ctx).With().
		Str("component", "ticketmaster_client").
		Str("path", path).
		Logger()

	rc := *c.retry
	rc.OnRetry = func(attempt int, delay time.Duration, err error) {
		upstreamRetries.WithLabelValues(endpoint).Inc()
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("upstream_retry")
		if c.retry.OnRetry != nil {
			c.retry.OnRetry(attempt, delay, err)
		}
	}

	var body []byte
	err = retry.Retry(ctx, &rc, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			upstreamRequests.WithLabelValues(endpoint, "error").Inc()
			log.Warn().Err(redact(err)).Dur("duration", time.Since(start)).Msg("upstream_request_failed")
			return redact(err)
		}
		defer resp.Body.Close()

		upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		upstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if resp.StatusCode >= 400 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			se := &StatusError{StatusCode: resp.StatusCode}
			log.Warn().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("upstream_request_failed")
			if se.Retryable() {
				return se
			}
			return retry.Permanent(se)
		}

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		body = b
		log.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("upstream_request_completed")
		return nil
	})
	return body, err
}

// translate turns a fetch failure into the error kinds handlers map to HTTP.
// A cancelled request context passes through untouched.
func (c *Client) translate(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusNotFound {
			return &domain.AppError{Code: domain.CodeNotFound, Message: se.Error(), Err: err}
		}
		return domain.ErrUpstream(se.Error(), err)
	}
	return domain.ErrUpstream("Failed to fetch", err)
}

// redact drops the request URL (it carries the API key) from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s upstream: %w", ue.Op, ue.Err)
	}
	return err
}
