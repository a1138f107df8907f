package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	appCtx "github.com/baechuer/cityevents/services/discovery-service/internal/pkg/context"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/response"
)

const rateLimitPrefix = "rl:discovery:"

// slidingWindow trims entries older than the window, then admits the request
// when fewer than limit remain.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, ttl)
		return 1
	end

	return 0
`)

// RedisRateLimiter is a sliding-window limiter shared by every replica.
// A nil client or a redis error lets the request through.
type RedisRateLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		prefix: rateLimitPrefix,
		now:    time.Now,
	}
}

type RateLimitConfig struct {
	Scope  string
	Limit  int
	Window time.Duration
	KeyFn  func(r *http.Request) string
}

func (l *RedisRateLimiter) Middleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFn := cfg.KeyFn
	if keyFn == nil {
		keyFn = KeyByIP
	}
	retryAfter := strconv.Itoa(int(cfg.Window.Round(time.Second).Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || l.rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := l.prefix + cfg.Scope + ":" + keyFn(r)
			allowed, err := l.allow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.Ctx(r.Context()).Warn().Err(err).Str("scope", cfg.Scope).Msg("rate_limit_unavailable")
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				response.Fail(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", nil, appCtx.GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *RedisRateLimiter) allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := l.now().UnixMilli()
	windowStart := now - window.Milliseconds()

	res, err := slidingWindow.Run(ctx, l.rdb, []string{key},
		now, windowStart, limit, window.Milliseconds(), uuid.NewString(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// KeyByIP keys on the remote host. RealIP runs earlier in the chain, so
// RemoteAddr already reflects X-Forwarded-For when present.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
