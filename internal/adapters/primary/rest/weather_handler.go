// Package rest implements HTTP handlers for the weather proxy endpoints.
// This package serves as the primary adapter, translating HTTP requests
// into domain operations and formatting responses for clients.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
	"github.com/sean-rowe/cwa-weather-proxy/internal/middleware"
)

// WeatherHandler handles HTTP requests for forecast and city operations.
type WeatherHandler struct {
	// service provides access to weather business operations
	service ports.WeatherService

	// logger records request processing events and errors
	logger *zap.Logger
}

// NewWeatherHandler creates a new HTTP handler for weather operations.
//
// Parameters:
//   - service: WeatherService interface for business logic operations
//   - logger: Zap logger for request logging and error tracking
//
// Returns:
//   - *WeatherHandler: Configured handler instance
func NewWeatherHandler(service ports.WeatherService, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
	}
}

// SuccessResponse is the envelope of every successful API response.
// Cached is only set by the weather endpoint.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Cached  *bool       `json:"cached,omitempty"`
}

// ErrorResponse represents a standardized error response structure.
type ErrorResponse struct {
	Error           string      `json:"error"`
	Message         string      `json:"message"`
	AvailableCities []string    `json:"availableCities,omitempty"`
	Details         interface{} `json:"details,omitempty"`
}

// GetWeather handles GET /api/weather/{city}.
//
// Response codes:
//   - 200: Success, with "cached" telling whether the data came from cache
//   - 400: Unknown city code (INVALID_CITY_CODE) with the list of valid codes
//   - 404: Provider has no data for the city (LOCATION_NOT_FOUND)
//   - 500: Missing CWA credential (MISSING_CREDENTIAL), provider payload
//     could not be parsed (MALFORMED_PAYLOAD) or unexpected error
//   - other: Status returned by the provider (UPSTREAM_ERROR)
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	result, err := h.service.GetCityForecast(r.Context(), city)

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	cached := result.Cached

	respondWithJSON(w, h.logger, http.StatusOK, SuccessResponse{
		Success: true,
		Data:    result.Forecast,
		Cached:  &cached,
	})
}

// ListCities handles GET /api/cities.
func (h *WeatherHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, SuccessResponse{
		Success: true,
		Data:    h.service.Cities(),
	})
}

// handleServiceError maps domain errors to HTTP responses. Internal details
// are logged, never returned to the caller.
func (h *WeatherHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *domain.WeatherError

	if !errors.As(err, &e) {
		h.respondInternalError(w, r, err)
		return
	}

	switch e.Code {
	case domain.CodeInvalidCityCode:
		respondWithJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{
			Error:           e.Code,
			Message:         e.Message,
			AvailableCities: domain.CityCodes(),
		})
	case domain.CodeMissingCredential, domain.CodeMalformedPayload:
		respondWithError(w, h.logger, http.StatusInternalServerError, e.Code, e.Message)
	case domain.CodeLocationNotFound:
		respondWithError(w, h.logger, http.StatusNotFound, e.Code, e.Message)
	case domain.CodeUpstreamError:
		var upstream *domain.UpstreamError

		if !errors.As(err, &upstream) {
			h.respondInternalError(w, r, err)
			return
		}

		respondWithJSON(w, h.logger, upstream.StatusCode, ErrorResponse{
			Error:   e.Code,
			Message: e.Message,
			Details: upstream.Body,
		})
	default:
		h.respondInternalError(w, r, err)
	}
}

func (h *WeatherHandler) respondInternalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("unexpected error",
		zap.Error(err),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)

	respondWithError(
		w,
		h.logger,
		http.StatusInternalServerError,
		domain.CodeInternalError,
		"Unable to retrieve weather data, please try again later",
	)
}

// respondWithJSON sends a JSON response with the specified status code.
func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondWithError sends a standardized error response.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	respondWithJSON(w, logger, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
