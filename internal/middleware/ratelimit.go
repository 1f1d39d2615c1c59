package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter: INCR the key, set its TTL whenever it has none
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit requests per window for each key
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	}); err != nil {
		return false, err
	}

	// a key without a TTL is either new or missed its EXPIRE; either way it gets one now
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= l.limit, nil
}

// RateLimit rejects with 429 once the caller exceeds the limiter. A nil limiter disables the
// check, and Redis errors let the request through.
func RateLimit(limiter Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			key := session.UserID(c)
			if key == "" {
				key = c.RealIP()
			}

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				log.Printf("rate limiter unavailable: %v", err)
				return next(c)
			}
			if !allowed {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}
			return next(c)
		}
	}
}
