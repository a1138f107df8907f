package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/cityevents/services/discovery-service/internal/config"
	appCtx "github.com/baechuer/cityevents/services/discovery-service/internal/pkg/context"
	"github.com/baechuer/cityevents/services/discovery-service/internal/tracing"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/handlers"
	appmw "github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/middleware"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/response"
)

const ProxyPrefix = "/api/tm"

// New wires the public API. rdb may be nil, which disables the shared proxy quota.
func New(
	h *handlers.DiscoveryHandler,
	z *handlers.HealthHandler,
	tm http.Handler,
	rdb *redis.Client,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(appmw.RequestID)
	r.Use(appmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appmw.AccessLog)
	r.Use(appmw.Metrics)
	r.Use(appmw.Tracing(tracing.ServiceName))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, http.StatusNotFound, "not_found", "route not found", nil, appCtx.GetRequestID(r.Context()))
	})

	r.Get("/healthz", z.Healthz)
	r.Get("/readyz", z.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RLEnabled {
			r.Use(httprate.Limit(
				cfg.RLLimit,
				cfg.RLWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					response.Fail(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", nil, appCtx.GetRequestID(r.Context()))
				}),
			))
		}

		r.Get("/discover", h.Discover)
		r.Get("/featured", h.Featured)
		r.Get("/search", h.Search)
		r.Get("/events/{id}", h.Details)

		r.Group(func(r chi.Router) {
			if cfg.RLEnabled {
				limiter := appmw.NewRedisRateLimiter(rdb)
				r.Use(limiter.Middleware(appmw.RateLimitConfig{
					Scope:  "tm",
					Limit:  cfg.ProxyRLLimit,
					Window: cfg.ProxyRLWindow,
				}))
			}
			r.Handle("/tm", tm)
			r.Handle("/tm/*", tm)
		})
	})

	return r
}
