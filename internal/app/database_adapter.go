package app

import (
	"context"
	"time"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/database"
	"github.com/sean-rowe/cwa-weather-proxy/internal/middleware"
)

// DatabaseAdapter adapts PostgresDB to ports.DatabaseRepository.
type DatabaseAdapter struct {
	db *database.PostgresDB
}

func NewDatabaseAdapter(db *database.PostgresDB) *DatabaseAdapter {
	return &DatabaseAdapter{db: db}
}

var _ ports.DatabaseRepository = (*DatabaseAdapter)(nil)

// LogForecastRequest stores one audit row. The request ID falls back to the
// one assigned by the HTTP middleware.
func (d *DatabaseAdapter) LogForecastRequest(ctx context.Context, req ports.ForecastRequest) error {
	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.GetRequestID(ctx)
	}

	return d.db.LogForecastRequest(ctx, database.ForecastRequest{
		RequestID:      requestID,
		CityCode:       req.CityCode,
		LocationName:   req.LocationName,
		CacheHit:       req.CacheHit,
		ErrorCode:      req.ErrorCode,
		ResponseTimeMs: req.ResponseTimeMs,
	})
}

func (d *DatabaseAdapter) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	return d.db.GetRequestStats(ctx, since)
}
