// Package database stores the request audit log in PostgreSQL. Only request
// metadata is written; forecast payloads never leave the in-memory cache.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PostgresDB struct {
	db     *sql.DB
	logger *zap.Logger
}

type Config struct {
	DSN                   string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// NewPostgresDB opens the connection pool, verifies it and applies pending
// migrations.
//
// Parameters:
//   - ctx: Context bounding the ping and migrations
//   - cfg: Connection settings
//   - logger: Zap logger
//
// Returns:
//   - *PostgresDB: Ready audit store
//   - error: Connection or migration error
func NewPostgresDB(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened and migrated connection pool.
func NewWithDB(db *sql.DB, logger *zap.Logger) *PostgresDB {
	return &PostgresDB{
		db:     db,
		logger: logger,
	}
}

// ForecastRequest is one row of forecast_requests.
type ForecastRequest struct {
	RequestID      string
	CityCode       string
	LocationName   string
	CacheHit       bool
	ErrorCode      string
	ResponseTimeMs int64
}

const insertForecastRequest = `
    INSERT INTO forecast_requests (
        request_id, city_code, location_name, cache_hit, error_code, response_time_ms
    ) VALUES ($1, $2, $3, $4, $5, $6)
`

func (p *PostgresDB) LogForecastRequest(ctx context.Context, req ForecastRequest) error {
	ctx, span := otel.Tracer("database").Start(ctx, "PostgresDB.LogForecastRequest")
	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.String("city_code", req.CityCode),
		attribute.Bool("cache_hit", req.CacheHit),
	)

	start := time.Now()
	_, err := p.db.ExecContext(ctx, insertForecastRequest,
		nullString(req.RequestID),
		req.CityCode,
		nullString(req.LocationName),
		req.CacheHit,
		nullString(req.ErrorCode),
		req.ResponseTimeMs,
	)

	duration := time.Since(start)
	if err != nil {
		p.logger.Error("failed to log forecast request",
			zap.Error(err),
			zap.String("request_id", req.RequestID),
			zap.Duration("duration", duration),
		)
		span.RecordError(err)
		return fmt.Errorf("insert forecast request: %w", err)
	}

	return nil
}

const selectRequestStats = `
    SELECT
        COUNT(*) AS total_requests,
        AVG(response_time_ms) AS avg_response_time,
        MIN(response_time_ms) AS min_response_time,
        MAX(response_time_ms) AS max_response_time,
        SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END)::float / NULLIF(COUNT(*), 0)::float AS cache_hit_rate,
        SUM(CASE WHEN error_code IS NOT NULL THEN 1 ELSE 0 END) AS error_count
    FROM forecast_requests
    WHERE requested_at >= $1
`

// GetRequestStats aggregates the audit rows written since the given time.
// Aggregates over an empty window are reported as zero.
func (p *PostgresDB) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	ctx, span := otel.Tracer("database").Start(ctx, "PostgresDB.GetRequestStats")
	defer span.End()

	var stats struct {
		TotalRequests   int64
		AvgResponseTime sql.NullFloat64
		MinResponseTime sql.NullInt64
		MaxResponseTime sql.NullInt64
		CacheHitRate    sql.NullFloat64
		ErrorCount      sql.NullInt64
	}

	err := p.db.QueryRowContext(ctx, selectRequestStats, since).Scan(
		&stats.TotalRequests,
		&stats.AvgResponseTime,
		&stats.MinResponseTime,
		&stats.MaxResponseTime,
		&stats.CacheHitRate,
		&stats.ErrorCount,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query request stats: %w", err)
	}

	return map[string]interface{}{
		"since":             since.UTC().Format(time.RFC3339),
		"total_requests":    stats.TotalRequests,
		"avg_response_time": stats.AvgResponseTime.Float64,
		"min_response_time": stats.MinResponseTime.Int64,
		"max_response_time": stats.MaxResponseTime.Int64,
		"cache_hit_rate":    stats.CacheHitRate.Float64,
		"error_count":       stats.ErrorCount.Int64,
	}, nil
}

// DB exposes the pool for migrations.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
