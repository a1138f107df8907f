package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/baechuer/cityevents/services/discovery-service/internal/application/discovery"
	"github.com/baechuer/cityevents/services/discovery-service/internal/config"
	"github.com/baechuer/cityevents/services/discovery-service/internal/geo"
	rediscache "github.com/baechuer/cityevents/services/discovery-service/internal/infrastructure/caching/redis"
	"github.com/baechuer/cityevents/services/discovery-service/internal/infrastructure/ticketmaster"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	"github.com/baechuer/cityevents/services/discovery-service/internal/proxy"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
	"github.com/baechuer/cityevents/services/discovery-service/internal/retry"
	"github.com/baechuer/cityevents/services/discovery-service/internal/tracing"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/handlers"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/router"
)

const shutdownTimeout = 15 * time.Second

// App holds all dependencies for the service
type App struct {
	Config *config.Config
	Server *http.Server
	Redis  *rediscache.Client
	Tracer *tracing.TracerProvider
}

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file merged into the environment")
	addr := pflag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Init("info", "console")
		zlog.Fatal().Err(err).Msg("config load failed")
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("app init failed")
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Msg("listening")
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zlog.Error().Err(err).Msg("server crashed")
		}
	case <-ctx.Done():
		zlog.Info().Msg("shutdown signal received")
	}

	app.Shutdown()
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// 1) Observability
	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  tracing.ServiceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		Enabled:      cfg.OTelEnabled,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return nil, err
	}
	app.Tracer = tp

	// 2) Infrastructure
	var cache ticketmaster.Cache
	var zipCache geo.Cache
	if cfg.RedisURL != "" {
		rc, err := rediscache.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.Redis = rc
		cache = rc
		zipCache = rc
		zlog.Info().Dur("ttl", cfg.CacheTTL).Msg("redis ready: upstream cache and proxy quota enabled")
	} else {
		zlog.Warn().Msg("REDIS_URL empty: upstream cache and shared proxy quota disabled")
	}

	zips, err := geo.Load(cfg.ZipcodesFile)
	if err != nil {
		return nil, err
	}
	zlog.Info().Int("zipcodes", zips.Len()).Msg("zip table loaded")

	resolver := geo.Chain{zips}
	if cfg.ZipLookupEnabled {
		resolver = append(resolver, geo.NewRemote(geo.RemoteConfig{
			BaseURL:  cfg.ZipLookupURL,
			Timeout:  cfg.ZipLookupTimeout,
			CacheTTL: cfg.ZipCacheTTL,
			Tracer:   tp.Tracer(),
		}, zipCache, logger.Log))
		zlog.Info().Str("url", cfg.ZipLookupURL).Msg("remote zip lookup enabled for codes outside the table")
	}

	if cfg.TicketmasterAPIKey == "" {
		zlog.Warn().Msg("TICKETMASTER_API_KEY empty: upstream calls answer config_error")
	}

	tm := ticketmaster.New(ticketmaster.Config{
		BaseURL: cfg.TicketmasterBaseURL,
		APIKey:  cfg.TicketmasterAPIKey,
		Timeout: cfg.UpstreamTimeout,
		Retry: &retry.Config{
			MaxRetries:   cfg.RetryMax,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
		},
		CacheTTL: cfg.CacheTTL,
	}, cache, logger.Log)

	tmProxy, err := proxy.New(cfg.TicketmasterBaseURL, cfg.TicketmasterAPIKey, router.ProxyPrefix)
	if err != nil {
		return nil, err
	}

	// 3) Application
	svc := discovery.NewService(tm, query.NewBuilder(resolver), nil)

	// 4) Transport
	h := handlers.NewDiscoveryHandler(svc)
	var checkers []handlers.ReadinessChecker
	rdb := app.Redis.Raw()
	if app.Redis != nil {
		checkers = append(checkers, handlers.NewPingChecker("redis", app.Redis.Ping))
	}
	z := handlers.NewHealthHandler(checkers...)

	httpHandler := router.New(h, z, tmProxy, rdb, cfg)

	// 5) Server
	app.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return app, nil
}

// Shutdown drains in-flight requests, then releases redis and flushes spans.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			zlog.Error().Err(err).Msg("http shutdown failed")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			zlog.Warn().Err(err).Msg("redis close failed")
		}
	}
	if a.Tracer != nil {
		if err := a.Tracer.Shutdown(ctx); err != nil {
			zlog.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}
	zlog.Info().Msg("bye")
}
