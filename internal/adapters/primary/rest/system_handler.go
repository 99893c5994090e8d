package rest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
	"github.com/sean-rowe/cwa-weather-proxy/internal/version"
)

const statsWindow = time.Hour

// SystemHandler serves the service directory, health, version, stats and
// not-found responses.
type SystemHandler struct {
	stats  ports.DatabaseRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewSystemHandler creates the system endpoints handler. stats may be nil
// when the audit log is disabled.
func NewSystemHandler(stats ports.DatabaseRepository, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Example   string            `json:"example"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Root handles GET / with a directory of the API.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, ServiceInfo{
		Message: "Welcome to the CWA weather forecast API",
		Endpoints: map[string]string{
			"weather": "/api/weather/:city",
			"cities":  "/api/cities",
			"health":  "/api/health",
		},
		Example: "/api/weather/taipei",
	})
}

// Health handles GET /api/health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// Version handles GET /version.
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, version.Get())
}

// Stats handles GET /api/stats with audit aggregates for the last hour.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable,
			"STATS_UNAVAILABLE", "Request statistics are not enabled")

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.stats.GetRequestStats(ctx, h.now().Add(-statsWindow))

	if err != nil {
		h.logger.Error("failed to query request stats", zap.Error(err))
		respondWithError(w, h.logger, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Unable to load request statistics")

		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, SuccessResponse{
		Success: true,
		Data:    stats,
	})
}

// NotFound handles every unmatched path.
func (h *SystemHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "The requested path does not exist")
}
