package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "cwa-proxy:ratelimit:10.0.0.1", Key("10.0.0.1"))
}

func TestRedisRateLimiter_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, zap.NewNop())

	allowed, err := limiter.Allow(context.Background(), "10.0.0.1", 10, time.Minute)
	require.Error(t, err)
	assert.False(t, allowed)

	assert.Error(t, limiter.Reset(context.Background(), "10.0.0.1"))
}
