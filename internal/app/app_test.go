package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/config"
)

const taipeiPayload = `{
  "success": "true",
  "records": {
    "datasetDescription": "三十六小時天氣預報",
    "location": [{
      "locationName": "臺北市",
      "weatherElement": [
        {"elementName": "Wx", "time": [
          {"startTime": "2024-05-01 18:00:00", "endTime": "2024-05-02 06:00:00", "parameter": {"parameterName": "多雲時晴", "parameterValue": "3"}},
          {"startTime": "2024-05-02 06:00:00", "endTime": "2024-05-02 18:00:00", "parameter": {"parameterName": "晴時多雲", "parameterValue": "2"}}
        ]},
        {"elementName": "PoP", "time": [
          {"startTime": "2024-05-01 18:00:00", "endTime": "2024-05-02 06:00:00", "parameter": {"parameterName": "20", "parameterUnit": "百分比"}},
          {"startTime": "2024-05-02 06:00:00", "endTime": "2024-05-02 18:00:00", "parameter": {"parameterName": "10", "parameterUnit": "百分比"}}
        ]},
        {"elementName": "MinT", "time": [
          {"startTime": "2024-05-01 18:00:00", "endTime": "2024-05-02 06:00:00", "parameter": {"parameterName": "22", "parameterUnit": "C"}},
          {"startTime": "2024-05-02 06:00:00", "endTime": "2024-05-02 18:00:00", "parameter": {"parameterName": "23", "parameterUnit": "C"}}
        ]},
        {"elementName": "CI", "time": [
          {"startTime": "2024-05-01 18:00:00", "endTime": "2024-05-02 06:00:00", "parameter": {"parameterName": "舒適"}},
          {"startTime": "2024-05-02 06:00:00", "endTime": "2024-05-02 18:00:00", "parameter": {"parameterName": "舒適至悶熱"}}
        ]},
        {"elementName": "MaxT", "time": [
          {"startTime": "2024-05-01 18:00:00", "endTime": "2024-05-02 06:00:00", "parameter": {"parameterName": "27", "parameterUnit": "C"}},
          {"startTime": "2024-05-02 06:00:00", "endTime": "2024-05-02 18:00:00", "parameter": {"parameterName": "31", "parameterUnit": "C"}}
        ]}
      ]
    }]
  }
}`

type fakeCWA struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeCWA(t *testing.T, status int, body string) *fakeCWA {
	t.Helper()

	f := &fakeCWA{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)

	return f
}

func testConfig(baseURL, apiKey string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", ShutdownTimeout: time.Second},
		External: config.ExternalConfig{
			CWAAPIKey:  apiKey,
			CWABaseURL: baseURL,
		},
		Cache:     config.CacheConfig{TTL: config.DefaultCacheTTL},
		RateLimit: config.RateLimitConfig{Enabled: false, RPS: 100, Window: time.Minute},
	}
}

func newTestHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	a := NewWithConfig(cfg, zap.NewNop())
	t.Cleanup(a.closeResources)

	return a.Handler(context.Background())
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return rec, body
}

func TestApp_ForecastIsCachedAcrossRequests(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)
	h := newTestHandler(t, testConfig(upstream.URL, "CWA-KEY"))

	rec, body := get(t, h, "/api/weather/TAIPEI")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["cached"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "臺北市", data["city"])
	assert.Equal(t, "三十六小時天氣預報", data["updateTime"])

	forecasts := data["forecasts"].([]interface{})
	require.Len(t, forecasts, 2)

	first := forecasts[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"startTime": "2024-05-01 18:00:00",
		"endTime":   "2024-05-02 06:00:00",
		"weather":   "多雲時晴",
		"rain":      "20%",
		"minTemp":   "22°C",
		"maxTemp":   "27°C",
		"comfort":   "舒適",
	}, first)

	firstData := body["data"]

	rec, body = get(t, h, "/api/weather/taipei")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, firstData, body["data"])
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestApp_ErrorPaths(t *testing.T) {
	tests := []struct {
		name          string
		apiKey        string
		status        int
		upstreamBody  string
		path          string
		wantStatus    int
		wantError     string
		wantUpstreams int32
	}{
		{
			name:         "unknown city",
			apiKey:       "CWA-KEY",
			status:       http.StatusOK,
			upstreamBody: taipeiPayload,
			path:         "/api/weather/atlantis",
			wantStatus:   http.StatusBadRequest,
			wantError:    "INVALID_CITY_CODE",
		},
		{
			name:         "missing credential",
			status:       http.StatusOK,
			upstreamBody: taipeiPayload,
			path:         "/api/weather/taipei",
			wantStatus:   http.StatusInternalServerError,
			wantError:    "MISSING_CREDENTIAL",
		},
		{
			name:          "provider rejects key",
			apiKey:        "bad",
			status:        http.StatusUnauthorized,
			upstreamBody:  `{"message":"Unauthorized"}`,
			path:          "/api/weather/taipei",
			wantStatus:    http.StatusUnauthorized,
			wantError:     "UPSTREAM_ERROR",
			wantUpstreams: 1,
		},
		{
			name:          "location missing from payload",
			apiKey:        "CWA-KEY",
			status:        http.StatusOK,
			upstreamBody:  `{"success":"true","records":{"datasetDescription":"x","location":[]}}`,
			path:          "/api/weather/taipei",
			wantStatus:    http.StatusNotFound,
			wantError:     "LOCATION_NOT_FOUND",
			wantUpstreams: 1,
		},
		{
			name:          "location without weather elements",
			apiKey:        "CWA-KEY",
			status:        http.StatusOK,
			upstreamBody:  `{"success":"true","records":{"datasetDescription":"x","location":[{"locationName":"臺北市","weatherElement":[]}]}}`,
			path:          "/api/weather/taipei",
			wantStatus:    http.StatusInternalServerError,
			wantError:     "MALFORMED_PAYLOAD",
			wantUpstreams: 1,
		},
		{
			name:          "unparseable payload",
			apiKey:        "CWA-KEY",
			status:        http.StatusOK,
			upstreamBody:  `<html>maintenance</html>`,
			path:          "/api/weather/taipei",
			wantStatus:    http.StatusInternalServerError,
			wantError:     "INTERNAL_ERROR",
			wantUpstreams: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := newFakeCWA(t, tt.status, tt.upstreamBody)
			h := newTestHandler(t, testConfig(upstream.URL, tt.apiKey))

			rec, body := get(t, h, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotContains(t, body, "success")
			assert.Equal(t, tt.wantUpstreams, upstream.calls.Load())
		})
	}
}

func TestApp_SystemEndpoints(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)
	h := newTestHandler(t, testConfig(upstream.URL, "CWA-KEY"))

	rec, body := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])

	rec, body = get(t, h, "/api/cities")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 22)

	rec, body = get(t, h, "/does/not/exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["error"])

	rec, body = get(t, h, "/api/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STATS_UNAVAILABLE", body["error"])

	rec, body = get(t, h, "/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cwa-weather-proxy", body["service"])

	assert.Equal(t, int32(0), upstream.calls.Load())
}

func TestApp_RateLimit(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)

	cfg := testConfig(upstream.URL, "CWA-KEY")
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 2, Window: time.Minute}
	h := newTestHandler(t, cfg)

	for i := 0; i < 2; i++ {
		rec, _ := get(t, h, "/api/health")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := get(t, h, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// The root directory sits outside /api and is never limited.
	rec, _ = get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_RateLimitIgnoresForwardedForByDefault(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)

	cfg := testConfig(upstream.URL, "CWA-KEY")
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 2, Window: time.Minute}
	h := newTestHandler(t, cfg)

	codes := make([]int, 0, 3)

	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Forwarded-For", forwarded)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestApp_CORSHeaders(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)
	h := newTestHandler(t, testConfig(upstream.URL, "CWA-KEY"))

	req := httptest.NewRequest(http.MethodGet, "/api/cities", nil)
	req.Header.Set("Origin", "https://example.com")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApp_MetricsEndpoint(t *testing.T) {
	upstream := newFakeCWA(t, http.StatusOK, taipeiPayload)

	cfg := testConfig(upstream.URL, "CWA-KEY")
	cfg.Observability = config.ObservabilityConfig{
		Enabled:        true,
		ServiceName:    "cwa-weather-proxy-test",
		ServiceVersion: "test",
		SampleRate:     1,
	}
	h := newTestHandler(t, cfg)

	_, _ = get(t, h, "/api/weather/taipei")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forecast_cache_misses")
}
