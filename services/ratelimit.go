package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/airies-ai/backend/metrics"
	"github.com/airies-ai/backend/models"
)

var rateLimitScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// RateLimiter enforces a fixed per-minute request budget per account.
type RateLimiter struct {
	redis *redis.Client
	limit int64
}

func NewRateLimiter(rdb *redis.Client, limit int64) *RateLimiter {
	return &RateLimiter{redis: rdb, limit: limit}
}

// Allow counts one request against the account's current minute window.
func (r *RateLimiter) Allow(ctx context.Context, accountID string, now time.Time) (allowed bool, used int64, resetAt time.Time, err error) {
	windowStart := now.UTC().Truncate(time.Minute)
	windowEnd := windowStart.Add(time.Minute)
	ttl := int64(windowEnd.Sub(now.UTC()).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	key := fmt.Sprintf("airies:ratelimit:%s:%s", accountID, windowStart.Format("200601021504"))
	res, err := rateLimitScript.Run(ctx, r.redis, []string{key}, ttl).Int64()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	return res <= r.limit, res, windowEnd, nil
}

// Middleware rejects requests over the account's budget. Requests without
// an authenticated user (webhooks, health) pass through untouched, and a
// Redis outage fails open so the limiter never takes the API down.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, ok := req.Context().Value("user").(*models.User)
		if !ok {
			next.ServeHTTP(w, req)
			return
		}

		allowed, used, resetAt, err := r.Allow(req.Context(), user.AccountID, time.Now())
		if err != nil {
			slog.Error("Rate limit check failed", "error", err, "account_id", user.AccountID)
			next.ServeHTTP(w, req)
			return
		}

		remaining := r.limit - used
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(r.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			metrics.Global().RateLimited.Inc()
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			slog.Warn("Rate limit exceeded", "account_id", user.AccountID, "used", used)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, req)
	})
}
