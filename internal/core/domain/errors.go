package domain

import (
	"errors"
	"fmt"
)

// Error codes reported by WeatherError. They double as the "error" field of
// the HTTP error envelope.
const (
	CodeInvalidCityCode   = "INVALID_CITY_CODE"
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeLocationNotFound  = "LOCATION_NOT_FOUND"
	CodeMalformedPayload  = "MALFORMED_PAYLOAD"
	CodeRetrievalError    = "FORECAST_RETRIEVAL_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

var (
	// ErrLocationNotFound is returned when the provider answers successfully
	// but carries no entry for the requested location.
	ErrLocationNotFound = errors.New("location not found in payload")

	// ErrMalformedPayload is returned when the provider payload does not have
	// the expected shape.
	ErrMalformedPayload = errors.New("malformed forecast payload")
)

// WeatherError represents domain-specific errors that can occur during weather operations.
// It provides structured error information with error codes and optional underlying causes.
type WeatherError struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides a human-readable error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

// Error implements the error interface for WeatherError.
// It formats the error message to include the code, message, and underlying cause.
func (e *WeatherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *WeatherError) Unwrap() error {
	return e.Cause
}

// UpstreamError is returned when the CWA API answers with a non-success status.
type UpstreamError struct {
	// StatusCode is the HTTP status returned by the provider
	StatusCode int

	// Message is the provider's own error message, if it sent one
	Message string

	// Body is the decoded response body, or its raw text when it is not JSON
	Body any
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("CWA API returned status %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("CWA API returned status %d", e.StatusCode)
}
