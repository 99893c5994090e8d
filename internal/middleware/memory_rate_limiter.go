package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

const idleSweepInterval = 5 * time.Minute

// MemoryRateLimiter provides an in-memory sliding window rate limiter for
// single instance deployments.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientInfo
	logger  *zap.Logger
	stop    chan struct{}
	once    sync.Once
}

// clientInfo tracks request timestamps for a single client.
type clientInfo struct {
	mu       sync.Mutex
	requests []time.Time
	window   time.Duration
}

// NewMemoryRateLimiter creates a new in-memory rate limiter and starts its
// idle-client sweeper. Call Close to stop the sweeper.
//
// Parameters:
//   - logger: Zap logger for rate limiter operations
//
// Returns:
//   - *MemoryRateLimiter: In-memory rate limiter implementation
func NewMemoryRateLimiter(logger *zap.Logger) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		clients: make(map[string]*clientInfo),
		logger:  logger,
		stop:    make(chan struct{}),
	}

	go rl.sweep(idleSweepInterval)

	return rl
}

var _ ports.RateLimitService = (*MemoryRateLimiter)(nil)

// Allow checks if a request from the given identifier is allowed under the rate limit.
//
// Parameters:
//   - ctx: Context for cancellation
//   - identifier: Client identifier (usually IP address)
//   - limit: Maximum requests allowed in window
//   - window: Time window for rate limiting
//
// Returns:
//   - bool: true if request is allowed, false if rate limit exceeded
//   - error: Context error if ctx is done
func (rl *MemoryRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client := rl.client(identifier, limit)
	now := time.Now()

	client.mu.Lock()
	defer client.mu.Unlock()

	client.window = window
	client.prune(now)

	if len(client.requests) >= limit {
		rl.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", limit))

		return false, nil
	}

	client.requests = append(client.requests, now)

	return true, nil
}

// Reset clears the rate limit history for a given identifier.
func (rl *MemoryRateLimiter) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	delete(rl.clients, identifier)
	rl.mu.Unlock()

	return nil
}

// Close stops the idle-client sweeper.
func (rl *MemoryRateLimiter) Close() error {
	rl.once.Do(func() { close(rl.stop) })

	return nil
}

func (rl *MemoryRateLimiter) client(identifier string, limit int) *clientInfo {
	rl.mu.RLock()
	client, exists := rl.clients[identifier]
	rl.mu.RUnlock()

	if exists {
		return client
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, exists = rl.clients[identifier]; !exists {
		client = &clientInfo{requests: make([]time.Time, 0, limit)}
		rl.clients[identifier] = client
	}

	return client
}

// prune drops timestamps that have left the window. Callers hold c.mu.
func (c *clientInfo) prune(now time.Time) {
	cutoff := now.Add(-c.window)
	valid := c.requests[:0]

	for _, req := range c.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}

	c.requests = valid
}

// sweep periodically removes clients with no requests left in their window.
func (rl *MemoryRateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.removeIdle(time.Now())
		}
	}
}

func (rl *MemoryRateLimiter) removeIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for identifier, client := range rl.clients {
		client.mu.Lock()
		client.prune(now)
		idle := len(client.requests) == 0
		client.mu.Unlock()

		if idle {
			delete(rl.clients, identifier)
		}
	}
}
