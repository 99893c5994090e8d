// Package cache provides the in-process forecast cache.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// entry is a stored value together with its insertion time.
type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// MemoryCache is a TTL cache with lazy expiration. Entries are checked for
// staleness only when read; there is no background sweep and no capacity bound.
type MemoryCache struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(m *MemoryCache) {
		m.now = now
	}
}

// NewMemoryCache creates an in-memory cache.
//
// Parameters:
//   - defaultTTL: Time-to-live used when Set is called with ttl <= 0
//   - logger: Zap logger for cache operations
//   - opts: Optional settings
//
// Returns:
//   - *MemoryCache: In-memory cache implementation
func NewMemoryCache(defaultTTL time.Duration, logger *zap.Logger, opts ...MemoryCacheOption) *MemoryCache {
	m := &MemoryCache{
		// Expiry is decided by the entry timestamps, so go-cache itself never
		// expires items and runs no janitor.
		cache:      gocache.New(gocache.NoExpiration, 0),
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

var _ ports.CacheService = (*MemoryCache)(nil)

// Get retrieves a value from the cache by key.
// An expired entry is removed and reported as a miss.
//
// Parameters:
//   - ctx: Context for tracing
//   - key: Cache key to look up
//
// Returns:
//   - []byte: Cached value if found and fresh
//   - error: ports.ErrCacheMiss if key is absent or expired
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Get")
	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	item, found := m.cache.Get(key)

	if !found {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		m.logger.Debug("memory cache miss", zap.String("key", key))

		return nil, ports.ErrCacheMiss
	}

	e := item.(entry)

	if m.now().Sub(e.insertedAt) > e.ttl {
		m.cache.Delete(key)
		span.SetAttributes(
			attribute.Bool("cache.hit", false),
			attribute.Bool("cache.expired", true),
		)
		m.logger.Debug("memory cache entry expired", zap.String("key", key))

		return nil, ports.ErrCacheMiss
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	m.logger.Debug("memory cache hit", zap.String("key", key))

	return e.value, nil
}

// Set stores a value, replacing any previous entry and stamping the current time.
//
// Parameters:
//   - ctx: Context for tracing
//   - key: Cache key to store under
//   - value: Data to cache
//   - ttl: Time-to-live for this entry, or <= 0 for the default
//
// Returns:
//   - error: Always nil for in-memory cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Set")
	defer span.End()

	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(value)),
		attribute.String("cache.ttl", ttl.String()),
	)

	m.cache.Set(key, entry{value: value, insertedAt: m.now(), ttl: ttl}, gocache.NoExpiration)
	m.logger.Debug("memory cache set", zap.String("key", key), zap.Duration("ttl", ttl))

	return nil
}

// Delete removes a value from the cache by key.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))
	m.cache.Delete(key)
	m.logger.Debug("memory cache delete", zap.String("key", key))

	return nil
}

// Clear removes all values from the cache.
func (m *MemoryCache) Clear(ctx context.Context) error {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Clear")
	defer span.End()

	m.cache.Flush()
	m.logger.Info("memory cache cleared")

	return nil
}

// ItemCount returns the number of stored entries, expired or not.
func (m *MemoryCache) ItemCount() int {
	return m.cache.ItemCount()
}
