package circuitbreaker

import (
	"context"
	"time"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

// AuditRepository guards an audit store with a Breaker. Once the store has
// failed enough times in a row, writes and stats reads fail fast with ErrOpen
// until the breaker lets a trial call through.
type AuditRepository struct {
	next    ports.DatabaseRepository
	breaker *Breaker
}

// NewAuditRepository wraps next with breaker.
func NewAuditRepository(next ports.DatabaseRepository, breaker *Breaker) *AuditRepository {
	return &AuditRepository{next: next, breaker: breaker}
}

var _ ports.DatabaseRepository = (*AuditRepository)(nil)

// LogForecastRequest stores one audit row through the breaker.
func (r *AuditRepository) LogForecastRequest(ctx context.Context, req ports.ForecastRequest) error {
	return r.breaker.Execute(ctx, "log_forecast_request", func() error {
		return r.next.LogForecastRequest(ctx, req)
	})
}

// GetRequestStats reads request statistics through the breaker and reports
// the breaker state alongside them.
func (r *AuditRepository) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	var stats map[string]interface{}

	err := r.breaker.Execute(ctx, "get_request_stats", func() error {
		var err error
		stats, err = r.next.GetRequestStats(ctx, since)

		return err
	})
	if err != nil {
		return nil, err
	}

	if stats == nil {
		stats = make(map[string]interface{})
	}

	stats["audit_breaker"] = r.breaker.State()

	return stats, nil
}
