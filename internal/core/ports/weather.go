// Package ports declares the interfaces between the core weather service and
// its adapters.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
)

// ErrCacheMiss indicates a cache key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// WeatherService is the primary port used by the HTTP adapter.
type WeatherService interface {
	// GetCityForecast returns the normalized forecast for a city code.
	GetCityForecast(ctx context.Context, code string) (*ForecastResult, error)

	// Cities lists the supported cities.
	Cities() []domain.City
}

// ForecastResult is a forecast together with where it was served from.
type ForecastResult struct {
	Forecast *domain.Forecast
	Cached   bool
}

// WeatherClient fetches raw forecasts from the upstream provider.
type WeatherClient interface {
	// FetchForecast performs exactly one upstream request for a location name.
	FetchForecast(ctx context.Context, locationName string) (*RawForecast, error)

	// HasCredential reports whether an API credential is configured.
	HasCredential() bool
}

// CacheService stores serialized values with a time-to-live.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RateLimitService decides whether a client may issue another request.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// MetricsRecorder receives forecast level measurements.
type MetricsRecorder interface {
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
	RecordUpstreamCall(ctx context.Context, city string, duration time.Duration, err error)
}

// ForecastRequest is one audited forecast lookup.
type ForecastRequest struct {
	RequestID      string
	CityCode       string
	LocationName   string
	CacheHit       bool
	ErrorCode      string
	ResponseTimeMs int64
}

// DatabaseRepository persists request audit records.
type DatabaseRepository interface {
	LogForecastRequest(ctx context.Context, req ForecastRequest) error
	GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error)
}
