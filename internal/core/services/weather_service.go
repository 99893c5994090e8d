// Package services implements the forecast use case: city resolution, caching,
// upstream retrieval and normalization.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// DefaultCacheTTL is how long a normalized forecast is served from cache.
const DefaultCacheTTL = 10 * time.Minute

const auditTimeout = 2 * time.Second

type weatherService struct {
	client  ports.WeatherClient
	cache   ports.CacheService
	db      ports.DatabaseRepository
	metrics ports.MetricsRecorder
	logger  *zap.Logger
	ttl     time.Duration

	// inflight collapses concurrent misses for the same cache key
	inflight singleflight.Group
}

// Option configures optional collaborators of the weather service.
type Option func(*weatherService)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *weatherService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMetrics records cache and upstream measurements.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(s *weatherService) {
		s.metrics = m
	}
}

// NewWeatherService creates the forecast use case.
//
// Parameters:
//   - client: Upstream CWA client
//   - cache: Forecast cache
//   - db: Optional audit repository, may be nil
//   - logger: Zap logger
//   - opts: Optional settings
//
// Returns:
//   - ports.WeatherService: Service implementation
func NewWeatherService(
	client ports.WeatherClient,
	cache ports.CacheService,
	db ports.DatabaseRepository,
	logger *zap.Logger,
	opts ...Option,
) ports.WeatherService {
	s := &weatherService{
		client: client,
		cache:  cache,
		db:     db,
		logger: logger,
		ttl:    DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cities lists every supported city.
func (s *weatherService) Cities() []domain.City {
	return domain.Cities()
}

// GetCityForecast resolves a city code and returns its forecast, from cache
// when a fresh entry exists and from the CWA API otherwise.
func (s *weatherService) GetCityForecast(ctx context.Context, code string) (*ports.ForecastResult, error) {
	ctx, span := otel.Tracer("forecast-service").Start(ctx, "WeatherService.GetCityForecast")
	defer span.End()

	start := time.Now()
	cityCode := domain.NormalizeCityCode(code)
	span.SetAttributes(attribute.String("city.code", cityCode))

	name, ok := domain.ResolveCity(cityCode)

	if !ok {
		err := &domain.WeatherError{
			Code:    domain.CodeInvalidCityCode,
			Message: "Please use a valid city code",
		}

		s.audit(ctx, ports.ForecastRequest{CityCode: cityCode}, start, err)

		return nil, err
	}

	request := ports.ForecastRequest{CityCode: cityCode, LocationName: name}
	key := domain.CacheKey(cityCode)

	if forecast, ok := s.fromCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		request.CacheHit = true
		s.audit(ctx, request, start, nil)

		return &ports.ForecastResult{Forecast: forecast, Cached: true}, nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	if !s.client.HasCredential() {
		err := &domain.WeatherError{
			Code:    domain.CodeMissingCredential,
			Message: "CWA_API_KEY is not configured on the server",
		}

		s.logger.Error("CWA credential missing, refusing upstream call", zap.String("city", cityCode))
		s.audit(ctx, request, start, err)

		return nil, err
	}

	// The shared fetch outlives any single caller; each caller only waits
	// for as long as its own context allows.
	fetchCtx := context.WithoutCancel(ctx)
	results := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.fetch(fetchCtx, key, name)
	})

	var res singleflight.Result

	select {
	case res = <-results:
	case <-ctx.Done():
		res.Err = &domain.WeatherError{
			Code:    domain.CodeRetrievalError,
			Message: "Request cancelled before the forecast was retrieved",
			Cause:   ctx.Err(),
		}
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		s.audit(ctx, request, start, res.Err)

		return nil, res.Err
	}

	forecast := res.Val.(*domain.Forecast)
	shared := res.Shared

	s.logger.Info("forecast retrieved",
		zap.String("city", cityCode),
		zap.Int("intervals", len(forecast.Forecasts)),
		zap.Bool("shared_fetch", shared))

	s.audit(ctx, request, start, nil)

	return &ports.ForecastResult{Forecast: forecast, Cached: false}, nil
}

// fromCache returns a cached forecast. Undecodable entries are dropped and
// reported as a miss.
func (s *weatherService) fromCache(ctx context.Context, key string) (*domain.Forecast, bool) {
	data, err := s.cache.Get(ctx, key)

	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}

		s.recordMiss(ctx, key)

		return nil, false
	}

	var forecast domain.Forecast

	if err := json.Unmarshal(data, &forecast); err != nil {
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = s.cache.Delete(ctx, key)
		s.recordMiss(ctx, key)

		return nil, false
	}

	if s.metrics != nil {
		s.metrics.RecordCacheHit(ctx, key)
	}

	return &forecast, true
}

// fetch calls the upstream API once, normalizes the payload and stores it.
func (s *weatherService) fetch(ctx context.Context, key, name string) (*domain.Forecast, error) {
	start := time.Now()
	raw, err := s.client.FetchForecast(ctx, name)

	if s.metrics != nil {
		s.metrics.RecordUpstreamCall(ctx, name, time.Since(start), err)
	}

	if err != nil {
		return nil, s.upstreamError(name, err)
	}

	forecast, err := NormalizeForecast(raw)

	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		return nil, &domain.WeatherError{
			Code:    domain.CodeLocationNotFound,
			Message: fmt.Sprintf("No weather data available for %s", name),
			Cause:   err,
		}
	case err != nil:
		s.logger.Error("unexpected CWA payload", zap.String("location", name), zap.Error(err))

		return nil, &domain.WeatherError{
			Code:    domain.CodeMalformedPayload,
			Message: "The weather provider returned an unexpected response",
			Cause:   err,
		}
	}

	payload, err := json.Marshal(forecast)

	if err != nil {
		s.logger.Error("failed to encode forecast for cache", zap.String("key", key), zap.Error(err))

		return forecast, nil
	}

	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}

	return forecast, nil
}

func (s *weatherService) upstreamError(name string, err error) error {
	var upstream *domain.UpstreamError

	if errors.As(err, &upstream) {
		s.logger.Error("CWA API error",
			zap.String("location", name),
			zap.Int("status", upstream.StatusCode),
			zap.String("message", upstream.Message))

		message := upstream.Message

		if message == "" {
			message = "Unable to retrieve weather data"
		}

		return &domain.WeatherError{
			Code:    domain.CodeUpstreamError,
			Message: message,
			Cause:   upstream,
		}
	}

	s.logger.Error("failed to get forecast", zap.String("location", name), zap.Error(err))

	return &domain.WeatherError{
		Code:    domain.CodeRetrievalError,
		Message: "Failed to retrieve weather forecast",
		Cause:   err,
	}
}

func (s *weatherService) recordMiss(ctx context.Context, key string) {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(ctx, key)
	}
}

// audit writes the request outcome to the audit repository, if configured.
// Failures are logged and never affect the response.
func (s *weatherService) audit(ctx context.Context, req ports.ForecastRequest, start time.Time, err error) {
	if s.db == nil {
		return
	}

	req.ResponseTimeMs = time.Since(start).Milliseconds()

	var we *domain.WeatherError

	if errors.As(err, &we) {
		req.ErrorCode = we.Code
	} else if err != nil {
		req.ErrorCode = domain.CodeInternalError
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := s.db.LogForecastRequest(auditCtx, req); err != nil {
		s.logger.Warn("failed to write audit record", zap.String("city", req.CityCode), zap.Error(err))
	}
}
