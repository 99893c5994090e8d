// Package circuitbreaker keeps a failing audit database from adding latency
// to forecast requests. It wraps sony/gobreaker with tracing and logging.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrOpen is returned without calling the protected operation while the
// breaker is open or its single half-open trial call is in flight.
var ErrOpen = errors.New("circuit breaker open")

// Config defines when the breaker opens and how long it stays open.
type Config struct {
	Name string
	// ConsecutiveFailures trips the breaker. Values below 1 mean 1.
	ConsecutiveFailures int
	// OpenTimeout is how long the breaker rejects calls before letting a
	// single trial call through.
	OpenTimeout time.Duration
}

// Breaker guards calls to one dependency.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
	name   string
}

// New creates a breaker that trips after cfg.ConsecutiveFailures failed calls.
//
// Parameters:
//   - cfg: Thresholds for the breaker
//   - logger: Zap logger for state changes and rejected calls
//
// Returns:
//   - *Breaker: Closed breaker ready for use
func New(cfg Config, logger *zap.Logger) *Breaker {
	threshold := uint32(1)
	if cfg.ConsecutiveFailures > 1 {
		threshold = uint32(cfg.ConsecutiveFailures)
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
		name:   cfg.Name,
	}
}

// Execute runs fn unless the breaker is open. Rejected calls return an error
// wrapping ErrOpen.
func (b *Breaker) Execute(ctx context.Context, operation string, fn func() error) error {
	_, span := otel.Tracer("circuit-breaker").Start(ctx, "Breaker.Execute")
	defer span.End()

	span.SetAttributes(
		attribute.String("circuit_breaker.name", b.name),
		attribute.String("circuit_breaker.operation", operation),
		attribute.String("circuit_breaker.state", b.State()),
	)

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		span.SetAttributes(attribute.Bool("circuit_breaker.rejected", true))
		b.logger.Debug("call rejected by open circuit breaker",
			zap.String("name", b.name),
			zap.String("operation", operation))

		return fmt.Errorf("%s %s: %w", b.name, operation, ErrOpen)
	}

	if err != nil {
		span.RecordError(err)
	}

	return err
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
