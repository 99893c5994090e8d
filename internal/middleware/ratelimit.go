package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// RateLimitMiddleware rejects clients that exceed a request budget per window.
type RateLimitMiddleware struct {
	limiter           ports.RateLimitService
	limit             int
	window            time.Duration
	trustProxyHeaders bool
	logger            *zap.Logger
}

// NewRateLimitMiddleware creates a rate-limiting middleware.
//
// Parameters:
//   - limiter: Redis or memory backed rate limiter
//   - limit: Maximum requests per client in window
//   - window: Sliding window length
//   - trustProxyHeaders: Key clients by X-Forwarded-For/X-Real-IP instead of RemoteAddr
//   - logger: Zap logger
//
// Returns:
//   - *RateLimitMiddleware: Middleware instance
func NewRateLimitMiddleware(
	limiter ports.RateLimitService,
	limit int,
	window time.Duration,
	trustProxyHeaders bool,
	logger *zap.Logger,
) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:           limiter,
		limit:             limit,
		window:            window,
		trustProxyHeaders: trustProxyHeaders,
		logger:            logger,
	}
}

// Middleware enforces the limit per client IP. Limiter failures let the
// request through.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r, m.trustProxyHeaders)

		allowed, err := m.limiter.Allow(r.Context(), clientIP, m.limit, m.window)

		if err != nil {
			m.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", clientIP),
				zap.Error(err))

			next.ServeHTTP(w, r)

			return
		}

		if !allowed {
			w.Header().Set("Retry-After", strconvSeconds(m.window))
			writeJSONError(w, m.logger, http.StatusTooManyRequests,
				"RATE_LIMITED", "Too many requests, please slow down")

			return
		}

		next.ServeHTTP(w, r)
	})
}
