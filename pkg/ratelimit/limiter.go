package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/common"
	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/logger"
)

// counterScript increments a fixed-window counter, arming the window TTL on
// the first hit. Returns the new count and the remaining window in ms.
var counterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// Result describes one rate limit decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a Redis-backed fixed-window rate limiter shared across
// instances.
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
}

// NewLimiter creates a limiter on the given Redis client.
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{client: client, cfg: cfg}
}

// Allow records one hit for the key and decides whether it stays within the
// configured limit plus burst headroom.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	window := l.cfg.Window()
	redisKey := fmt.Sprintf("%s:%s", l.cfg.RedisPrefix, key)

	raw, err := counterScript.Run(ctx, l.client, []string{redisKey}, window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("rate limit script returned unexpected shape: %v", raw)
	}
	count := values[0].(int64)
	ttlMillis := values[1].(int64)

	max := int64(l.cfg.DefaultLimit + l.cfg.DefaultBurst)
	result := &Result{
		Allowed:   count <= max,
		Remaining: int(max - count),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed && ttlMillis > 0 {
		result.RetryAfter = time.Duration(ttlMillis) * time.Millisecond
	}
	return result, nil
}

// Middleware enforces the limit per client IP. A Redis outage fails open:
// throttling is protection, not a correctness requirement.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.cfg.Enabled {
			c.Next()
			return
		}

		result, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
