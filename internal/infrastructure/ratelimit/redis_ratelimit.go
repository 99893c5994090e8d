// Package ratelimit provides distributed rate limiting using Redis so that
// several proxy replicas share one request budget per client.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// KeyPrefix namespaces rate limit keys in a shared Redis.
const KeyPrefix = "cwa-proxy:ratelimit:"

// slidingWindow trims the sorted set to the window, then admits the request
// if the remaining count is under the limit. Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

if redis.call('ZCARD', key) >= limit then
    return 0
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisRateLimiter implements ports.RateLimitService on a Redis sorted set.
type RedisRateLimiter struct {
	client redis.Scripter
	keys   redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
//
// Parameters:
//   - client: Redis client for distributed state
//   - logger: Zap logger for rate limiting events
//
// Returns:
//   - *RedisRateLimiter: Redis rate limiter implementation
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		keys:   client,
		logger: logger,
		now:    time.Now,
	}
}

var _ ports.RateLimitService = (*RedisRateLimiter)(nil)

// Allow checks if a request is allowed under the rate limit.
func (r *RedisRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	ctx, span := otel.Tracer("ratelimit").Start(ctx, "RedisRateLimiter.Allow")
	defer span.End()

	span.SetAttributes(
		attribute.String("ratelimit.identifier", identifier),
		attribute.Int("ratelimit.limit", limit),
		attribute.String("ratelimit.window", window.String()),
	)

	args := []interface{}{
		limit,
		window.Milliseconds(),
		r.now().UnixMilli(),
		uuid.NewString(),
	}

	result, err := slidingWindow.Run(ctx, r.client, []string{Key(identifier)}, args...).Int64()
	if err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit eval error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return false, fmt.Errorf("rate limit eval: %w", err)
	}

	allowed := result == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))

	if !allowed {
		r.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", limit))
	}

	return allowed, nil
}

// Reset clears the rate limit history for an identifier.
func (r *RedisRateLimiter) Reset(ctx context.Context, identifier string) error {
	ctx, span := otel.Tracer("ratelimit").Start(ctx, "RedisRateLimiter.Reset")
	defer span.End()

	span.SetAttributes(attribute.String("ratelimit.identifier", identifier))

	if err := r.keys.Del(ctx, Key(identifier)).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit reset error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return fmt.Errorf("rate limit reset: %w", err)
	}

	return nil
}

// Key returns the Redis key holding the request window for identifier.
func Key(identifier string) string {
	return KeyPrefix + identifier
}
