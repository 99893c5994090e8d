package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/observability"
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation-id"
	RequestIDKey     contextKey = "request-id"
)

// ObservabilityMiddleware provides request IDs, tracing, metrics and access logs.
// telemetry may be nil, in which case spans go to the global (no-op) tracer
// and metrics are skipped.
type ObservabilityMiddleware struct {
	telemetry         *observability.Telemetry
	trustProxyHeaders bool
	logger            *zap.Logger
}

func NewObservabilityMiddleware(telemetry *observability.Telemetry, trustProxyHeaders bool, logger *zap.Logger) *ObservabilityMiddleware {
	return &ObservabilityMiddleware{
		telemetry:         telemetry,
		trustProxyHeaders: trustProxyHeaders,
		logger:            logger,
	}
}

// RequestIDMiddleware attaches correlation and request IDs to the context
// and echoes them in response headers.
func (m *ObservabilityMiddleware) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		requestID := uuid.New().String()

		ctx := context.WithValue(r.Context(), CorrelationIDKey, correlationID)
		ctx = context.WithValue(ctx, RequestIDKey, requestID)

		w.Header().Set("X-Correlation-ID", correlationID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *ObservabilityMiddleware) TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeTemplate(r)

		ctx, span := m.tracer().Start(ctx, r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.RequestURI()),
				attribute.String("http.client_ip", GetClientIP(r, m.trustProxyHeaders)),
				attribute.String("correlation_id", GetCorrelationID(ctx)),
				attribute.String("request_id", GetRequestID(ctx)),
			),
		)
		defer span.End()

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))

		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

func (m *ObservabilityMiddleware) MetricsMiddleware(next http.Handler) http.Handler {
	if m.telemetry == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		m.telemetry.RecordRequest(r.Context(), r.Method, routeTemplate(r), rec.status, time.Since(start))
	})
}

// LoggingMiddleware writes one access log line per request. Server errors are
// logged at error level, everything else at info.
func (m *ObservabilityMiddleware) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", GetClientIP(r, m.trustProxyHeaders)),
			zap.String("correlation_id", GetCorrelationID(r.Context())),
			zap.String("request_id", GetRequestID(r.Context())),
		}

		if rec.status >= http.StatusInternalServerError {
			m.logger.Error("request failed", fields...)
			return
		}

		m.logger.Info("request completed", fields...)
	})
}

func (m *ObservabilityMiddleware) tracer() trace.Tracer {
	if m.telemetry != nil {
		return m.telemetry.Tracer
	}

	return otel.Tracer("http")
}

// routeTemplate prefers the mux path template so metrics are not keyed by city.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}

	return r.URL.Path
}

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true

	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)

	return n, err
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
