package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTicketmasterBaseURL = "https://app.ticketmaster.com"
	DefaultZipLookupURL        = "https://api.zippopotam.us"
)

type Config struct {
	AppEnv string

	HTTPAddr string

	// Upstream
	TicketmasterBaseURL string
	TicketmasterAPIKey  string
	UpstreamTimeout     time.Duration

	// Retry policy for upstream calls
	RetryMax          int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Redis & Caching (REDIS_URL empty disables both)
	RedisURL string
	CacheTTL time.Duration

	// Rate Limiting
	RLEnabled     bool
	RLLimit       int
	RLWindow      time.Duration
	ProxyRLLimit  int
	ProxyRLWindow time.Duration

	// Zip centroids: embedded table, ZIPCODES_FILE, then the remote resolver
	ZipcodesFile     string
	ZipLookupEnabled bool
	ZipLookupURL     string
	ZipLookupTimeout time.Duration
	ZipCacheTTL      time.Duration

	// Tracing
	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64

	LogLevel  string
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Load reads the environment, after merging envFiles (default ".env") into it.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	cfg.TicketmasterBaseURL = strings.TrimRight(getEnv("TICKETMASTER_BASE_URL", DefaultTicketmasterBaseURL), "/")
	cfg.TicketmasterAPIKey = getEnv("TICKETMASTER_API_KEY", "")
	cfg.UpstreamTimeout = getDuration("UPSTREAM_TIMEOUT", 10*time.Second)

	cfg.RetryMax = getIntEnv("RETRY_MAX", 2)
	cfg.RetryInitialDelay = getDuration("RETRY_INITIAL_DELAY", 500*time.Millisecond)
	cfg.RetryMaxDelay = getDuration("RETRY_MAX_DELAY", 5*time.Second)

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.CacheTTL = getDuration("CACHE_TTL", 60*time.Second)

	// Rate Limiting Defaults: 100 reqs / 1 min, proxy 60 reqs / 1 min
	cfg.RLEnabled = getEnv("RL_ENABLED", "true") == "true"
	cfg.RLLimit = getIntEnv("RL_IP_LIMIT", 100)
	cfg.RLWindow = getDuration("RL_IP_WINDOW", 1*time.Minute)
	cfg.ProxyRLLimit = getIntEnv("PROXY_RL_LIMIT", 60)
	cfg.ProxyRLWindow = getDuration("PROXY_RL_WINDOW", 1*time.Minute)

	cfg.ZipcodesFile = getEnv("ZIPCODES_FILE", "")
	cfg.ZipLookupEnabled = getEnv("ZIP_LOOKUP_ENABLED", "true") == "true"
	cfg.ZipLookupURL = strings.TrimRight(getEnv("ZIP_LOOKUP_URL", DefaultZipLookupURL), "/")
	cfg.ZipLookupTimeout = getDuration("ZIP_LOOKUP_TIMEOUT", 2*time.Second)
	cfg.ZipCacheTTL = getDuration("ZIP_CACHE_TTL", 7*24*time.Hour)

	cfg.OTelEnabled = getEnv("OTEL_ENABLED", "false") == "true"
	cfg.OTelEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTelSampleRatio = getFloatEnv("OTEL_SAMPLE_RATIO", 1)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)

	// validation
	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("RETRY_MAX must be >= 0")
	}
	if cfg.RLLimit <= 0 || cfg.ProxyRLLimit <= 0 {
		return nil, fmt.Errorf("rate limits must be > 0")
	}

	// dev may run without a key: the view endpoints answer config_error instead
	if cfg.AppEnv != "dev" && cfg.TicketmasterAPIKey == "" {
		return nil, fmt.Errorf("missing TICKETMASTER_API_KEY (required when APP_ENV != dev)")
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getFloatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
