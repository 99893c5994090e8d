// Package cwa implements a client for the Central Weather Administration
// open data API. This package serves as a secondary adapter: it issues the
// datastore query and hands the raw payload back to the core untouched.
package cwa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
	"github.com/sean-rowe/cwa-weather-proxy/internal/core/ports"
)

const (
	// DefaultBaseURL is the CWA open data API endpoint.
	DefaultBaseURL = "https://opendata.cwa.gov.tw/api"

	// ForecastDataset is the 36-hour general forecast dataset.
	ForecastDataset = "F-C0032-001"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client implements the WeatherClient interface for the CWA datastore API.
type Client struct {
	// baseURL is the CWA API base endpoint
	baseURL string

	// apiKey is sent as the Authorization query parameter
	apiKey string

	// httpClient performs the single request per fetch
	httpClient *http.Client

	// logger records API interactions and errors
	logger *zap.Logger
}

// NewClient creates a new CWA API client.
//
// Parameters:
//   - baseURL: CWA API base URL (typically DefaultBaseURL)
//   - apiKey: CWA authorization key, may be empty
//   - httpClient: HTTP client used for requests
//   - logger: Zap logger for API interaction logging
//
// Returns:
//   - *Client: Configured CWA API client
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ ports.WeatherClient = (*Client)(nil)

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// FetchForecast retrieves the raw 36-hour forecast for a location name.
// It performs exactly one HTTP request and never retries.
//
// Parameters:
//   - ctx: Context for cancellation
//   - locationName: Canonical CWA location name, e.g. "臺北市"
//
// Returns:
//   - *ports.RawForecast: Decoded payload
//   - error: *domain.UpstreamError for a non-2xx status, or a transport/decode error
func (c *Client) FetchForecast(ctx context.Context, locationName string) (*ports.RawForecast, error) {
	ctx, span := otel.Tracer("cwa").Start(ctx, "CWA.FetchForecast")
	defer span.End()

	span.SetAttributes(
		attribute.String("cwa.dataset", ForecastDataset),
		attribute.String("cwa.location", locationName),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL(locationName), nil)

	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CWAWeatherProxy/1.0")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to call CWA API: %w", err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := newUpstreamError(resp)
		span.RecordError(upstreamErr)

		return nil, upstreamErr
	}

	var forecast ports.RawForecast

	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to decode CWA response: %w", err)
	}

	c.logger.Debug("CWA forecast fetched",
		zap.String("location", locationName),
		zap.Int("locations", len(forecast.Records.Location)))

	return &forecast, nil
}

// forecastURL builds the datastore query. The key is sent as a query
// parameter because that is how the CWA API authenticates.
func (c *Client) forecastURL(locationName string) string {
	query := url.Values{}
	query.Set("Authorization", c.apiKey)
	query.Set("locationName", locationName)

	return fmt.Sprintf("%s/v1/rest/datastore/%s?%s", c.baseURL, ForecastDataset, query.Encode())
}

// newUpstreamError captures the status and body of a failed response.
// JSON bodies are decoded so they can be echoed back as structured details.
func newUpstreamError(resp *http.Response) *domain.UpstreamError {
	upstreamErr := &domain.UpstreamError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if err != nil || len(raw) == 0 {
		return upstreamErr
	}

	var body any

	if err := json.Unmarshal(raw, &body); err != nil {
		upstreamErr.Body = string(raw)

		return upstreamErr
	}

	upstreamErr.Body = body

	if obj, ok := body.(map[string]any); ok {
		if msg, ok := obj["message"].(string); ok {
			upstreamErr.Message = msg
		}
	}

	return upstreamErr
}
