package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultRemoteBaseURL = "https://api.zippopotam.us"

var remoteLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zip_remote_lookups_total",
		Help: "Remote zip centroid lookups by result (hit, miss, error, cached)",
	},
	[]string{"result"},
)

// Cache is the optional lookup cache. The redis client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
}

type RemoteConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Tracer   trace.Tracer
}

// Remote resolves codes against a zippopotam.us style service
// (GET {base}/us/{zip}). Any failure is reported as unknown.
type Remote struct {
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	tracer   trace.Tracer
	lg       zerolog.Logger
}

// NewRemote builds the resolver. cache may be nil.
func NewRemote(cfg RemoteConfig, cache Cache, lg zerolog.Logger) *Remote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRemoteBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("discovery-service")
	}
	return &Remote{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		tracer:   cfg.Tracer,
		lg:       lg.With().Str("component", "zip_resolver").Logger(),
	}
}

// cachedZip remembers misses too, so unknown codes are not refetched.
type cachedZip struct {
	Found bool    `json:"found"`
	Info  ZipInfo `json:"info"`
}

type placesResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		Name      string `json:"place name"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
		State     string `json:"state abbreviation"`
	} `json:"places"`
}

func (r *Remote) Resolve(ctx context.Context, zip string) (ZipInfo, bool) {
	zip = Zip5(strings.TrimSpace(zip))
	if !IsZip(zip) {
		return ZipInfo{}, false
	}

	key := "zip:" + zip
	if r.cache != nil && r.cacheTTL > 0 {
		var c cachedZip
		found, err := r.cache.Get(ctx, key, &c)
		if err != nil {
			r.lg.Warn().Err(err).Str("key", key).Msg("zip cache get failed")
		} else if found {
			remoteLookups.WithLabelValues("cached").Inc()
			return c.Info, c.Found
		}
	}

	ctx, span := r.tracer.Start(ctx, "geo.resolve_zip", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("zip", zip))

	info, found, err := r.fetch(ctx, zip)
	if err != nil {
		remoteLookups.WithLabelValues("error").Inc()
		span.RecordError(err)
		r.lg.Warn().Err(err).Str("zip", zip).Msg("zip lookup failed")
		return ZipInfo{}, false
	}
	if found {
		remoteLookups.WithLabelValues("hit").Inc()
	} else {
		remoteLookups.WithLabelValues("miss").Inc()
	}
	span.SetAttributes(attribute.Bool("zip.found", found))

	if r.cache != nil && r.cacheTTL > 0 {
		if err := r.cache.Set(ctx, key, cachedZip{Found: found, Info: info}, r.cacheTTL); err != nil {
			r.lg.Warn().Err(err).Str("key", key).Msg("zip cache set failed")
		}
	}
	return info, found
}

func (r *Remote) fetch(ctx context.Context, zip string) (ZipInfo, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/us/"+zip, nil)
	if err != nil {
		return ZipInfo{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return ZipInfo{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ZipInfo{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ZipInfo{}, false, fmt.Errorf("zip lookup: HTTP %d", resp.StatusCode)
	}

	var body placesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return ZipInfo{}, false, fmt.Errorf("zip lookup: decode: %w", err)
	}
	if len(body.Places) == 0 {
		return ZipInfo{}, false, nil
	}

	p := body.Places[0]
	lat, err := strconv.ParseFloat(strings.TrimSpace(p.Latitude), 64)
	if err != nil {
		return ZipInfo{}, false, fmt.Errorf("zip lookup: latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(p.Longitude), 64)
	if err != nil {
		return ZipInfo{}, false, fmt.Errorf("zip lookup: longitude: %w", err)
	}
	return ZipInfo{Zip: zip, Latitude: lat, Longitude: lon, City: p.Name, State: p.State}, true, nil
}
