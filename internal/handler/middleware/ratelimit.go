package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimiter applies a sliding-window per-IP limit to REST endpoints.
// It is distinct from the per-session token bucket guarding WebSocket
// frames: this one protects the stateless HTTP surface.
type RateLimiter struct {
	client   *redis.Client
	logger   zerolog.Logger
	requests int
	window   time.Duration
}

// NewRateLimiter builds a limiter allowing requests per window per IP.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, logger: logger, requests: requests, window: window}
}

// RealIP extracts the client IP from proxy headers or the connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware enforces the limit. Redis being unreachable fails open:
// a throttling outage must not take the endpoint down with it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)
		key := "ratelimit:rest:" + ip

		allowed, remaining, resetAt, err := rl.checkAndIncrement(r, key)
		if err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			rl.logger.Warn().
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) checkAndIncrement(r *http.Request, key string) (bool, int, time.Time, error) {
	ctx := r.Context()
	now := time.Now()
	windowStart := now.Add(-rl.window)

	windowKey := fmt.Sprintf("%s:%d", key, now.Unix()/int64(rl.window.Seconds()))

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, windowKey, rl.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := countCmd.Val()
	remaining := rl.requests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < int64(rl.requests), remaining, now.Add(rl.window), nil
}
