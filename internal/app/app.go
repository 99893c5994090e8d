// Package app wires configuration, adapters and services into a runnable
// HTTP server and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/adapters/primary/rest"
	"github.com/sean-rowe/cwa-weather-proxy/internal/adapters/secondary/cwa"
	"github.com/sean-rowe/cwa-weather-proxy/internal/config"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/services"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/cache"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/circuitbreaker"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/database"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/ratelimit"
	"github.com/sean-rowe/cwa-weather-proxy/internal/middleware"
	"github.com/sean-rowe/cwa-weather-proxy/internal/observability"
	"github.com/sean-rowe/cwa-weather-proxy/internal/version"
)

// App manages the application lifecycle and dependencies.
type App struct {
	cfg       *config.Config
	server    *http.Server
	logger    *zap.Logger
	telemetry *observability.Telemetry
	db        *database.PostgresDB
	redis     *redis.Client
	limiter   *middleware.MemoryRateLimiter
}

// New creates a new application instance from the environment.
//
// Returns:
//   - *App: Configured application instance
//   - error: Logger initialization error
func New() (*App, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewWithConfig(config.Load(), logger), nil
}

// NewWithConfig creates an application from explicit settings.
func NewWithConfig(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Handler builds the full middleware chain and router. Optional components
// that fail to start (telemetry, Redis, Postgres) are logged and skipped.
func (a *App) Handler(ctx context.Context) http.Handler {
	if a.cfg.Observability.Enabled {
		if err := a.initTelemetry(ctx); err != nil {
			a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
		}
	}

	if err := a.initDatabase(ctx); err != nil {
		a.logger.Warn("failed to connect to database, continuing without it", zap.Error(err))
	}

	var auditRepo ports.DatabaseRepository
	if a.db != nil {
		auditRepo = circuitbreaker.NewAuditRepository(NewDatabaseAdapter(a.db), circuitbreaker.New(circuitbreaker.Config{
			Name:                "audit-db",
			ConsecutiveFailures: a.cfg.Database.BreakerFailures,
			OpenTimeout:         a.cfg.Database.BreakerTimeout,
		}, a.logger))
	}

	opts := []services.Option{services.WithCacheTTL(a.cfg.Cache.TTL)}
	if a.telemetry != nil {
		opts = append(opts, services.WithMetrics(a.telemetry))
	}

	weatherService := services.NewWeatherService(
		a.initWeatherClient(),
		cache.NewMemoryCache(a.cfg.Cache.TTL, a.logger),
		auditRepo,
		a.logger,
		opts...,
	)

	var apiMiddleware []mux.MiddlewareFunc
	if a.cfg.RateLimit.Enabled {
		rateLimit := middleware.NewRateLimitMiddleware(
			a.initRateLimiter(ctx),
			a.cfg.RateLimit.RPS,
			a.cfg.RateLimit.Window,
			a.cfg.RateLimit.TrustProxyHeaders,
			a.logger,
		)
		apiMiddleware = append(apiMiddleware, rateLimit.Middleware)
	}

	router := rest.NewRouter(
		rest.NewWeatherHandler(weatherService, a.logger),
		rest.NewSystemHandler(auditRepo, a.logger),
		apiMiddleware...,
	)

	obs := middleware.NewObservabilityMiddleware(a.telemetry, a.cfg.RateLimit.TrustProxyHeaders, a.logger)

	// Route-aware middleware only runs for matched routes.
	router.Use(obs.TracingMiddleware, obs.MetricsMiddleware)

	if a.telemetry != nil {
		router.Handle("/metrics", a.telemetry.Handler()).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	handler = obs.LoggingMiddleware(handler)
	handler = middleware.Recovery(a.logger)(handler)
	handler = obs.RequestIDMiddleware(handler)
	handler = middleware.CORS()(handler)

	return handler
}

// Start builds the handler and starts serving in the background.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Always nil; listen failures are fatal in the serving goroutine
func (a *App) Start(ctx context.Context) error {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      a.Handler(ctx),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	if !a.cfg.External.HasCWACredential() {
		a.logger.Warn("CWA_API_KEY is not set, forecast requests will fail until it is configured")
	}

	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("port", a.cfg.Server.Port),
			zap.String("environment", a.cfg.Server.Environment),
			zap.String("version", version.Get().String()))

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down all application components.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	a.closeResources()

	// Sync fails on some terminals; nothing useful to do about it.
	_ = a.logger.Sync()
}

func (a *App) closeResources() {
	if a.limiter != nil {
		_ = a.limiter.Close()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database connection", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

func (a *App) initTelemetry(ctx context.Context) error {
	telemetryConfig := observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: a.cfg.Observability.ServiceVersion,
		Environment:    a.cfg.Observability.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
	}

	var err error
	a.telemetry, err = observability.InitTelemetry(ctx, telemetryConfig, a.logger)

	return err
}

// initRateLimiter returns the Redis limiter when Redis is enabled and
// reachable, and the in-memory limiter otherwise.
func (a *App) initRateLimiter(ctx context.Context) ports.RateLimitService {
	if a.cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:         a.cfg.Redis.Addr,
			Password:     a.cfg.Redis.Password,
			DB:           a.cfg.Redis.DB,
			PoolSize:     a.cfg.Redis.PoolSize,
			MinIdleConns: a.cfg.Redis.MinIdleConns,
			MaxRetries:   a.cfg.Redis.MaxRetries,
			DialTimeout:  a.cfg.Redis.DialTimeout,
			ReadTimeout:  a.cfg.Redis.ReadTimeout,
			WriteTimeout: a.cfg.Redis.WriteTimeout,
		})

		err := client.Ping(ctx).Err()
		if err == nil {
			a.logger.Info("using redis rate limiter", zap.String("addr", a.cfg.Redis.Addr))
			a.redis = client

			return ratelimit.NewRedisRateLimiter(client, a.logger)
		}

		a.logger.Warn("redis connection failed, falling back to memory rate limiter", zap.Error(err))
		_ = client.Close()
	}

	a.limiter = middleware.NewMemoryRateLimiter(a.logger)

	return a.limiter
}

func (a *App) initDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	a.db, err = database.NewPostgresDB(connectCtx, database.Config{
		DSN:                   a.cfg.Database.DSN(),
		MaxConnections:        a.cfg.Database.MaxConnections,
		MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
	}, a.logger)

	return err
}

func (a *App) initWeatherClient() ports.WeatherClient {
	httpClient := &http.Client{
		Timeout: a.cfg.External.HTTPTimeout,
	}

	return cwa.NewClient(a.cfg.External.CWABaseURL, a.cfg.External.CWAAPIKey, httpClient, a.logger)
}
