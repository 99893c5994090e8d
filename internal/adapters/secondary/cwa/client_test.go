package cwa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/core/domain"
)

const samplePayload = `{
  "success": "true",
  "records": {
    "datasetDescription": "三十六小時天氣預報",
    "location": [{
      "locationName": "臺北市",
      "weatherElement": [
        {"elementName": "Wx", "time": [
          {"startTime": "2024-01-01 18:00:00", "endTime": "2024-01-02 06:00:00",
           "parameter": {"parameterName": "晴", "parameterValue": "1"}}
        ]},
        {"elementName": "PoP", "time": [
          {"startTime": "2024-01-01 18:00:00", "endTime": "2024-01-02 06:00:00",
           "parameter": {"parameterName": "30", "parameterUnit": "百分比"}}
        ]}
      ]
    }]
  }
}`

func TestClient_FetchForecast(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "/v1/rest/datastore/F-C0032-001", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("Authorization"))
		assert.Equal(t, "臺北市", r.URL.Query().Get("locationName"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", server.Client(), zap.NewNop())

	raw, err := client.FetchForecast(context.Background(), "臺北市")

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "三十六小時天氣預報", raw.Records.DatasetDescription)
	require.Len(t, raw.Records.Location, 1)
	assert.Equal(t, "臺北市", raw.Records.Location[0].LocationName)
	require.Len(t, raw.Records.Location[0].WeatherElement, 2)
	assert.Equal(t, "30", raw.Records.Location[0].WeatherElement[1].Time[0].Parameter.ParameterName)
}

func TestClient_FetchForecast_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedMessage string
		expectedBody    any
	}{
		{
			name:            "json error body",
			status:          http.StatusUnauthorized,
			body:            `{"message":"Unauthorized"}`,
			expectedMessage: "Unauthorized",
			expectedBody:    map[string]any{"message": "Unauthorized"},
		},
		{
			name:         "plain text body",
			status:       http.StatusBadGateway,
			body:         "bad gateway",
			expectedBody: "bad gateway",
		},
		{
			name:   "empty body",
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "secret", server.Client(), zap.NewNop())

			raw, err := client.FetchForecast(context.Background(), "臺北市")

			require.Error(t, err)
			assert.Nil(t, raw)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries expected")

			var upstream *domain.UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.status, upstream.StatusCode)
			assert.Equal(t, tt.expectedMessage, upstream.Message)
			assert.Equal(t, tt.expectedBody, upstream.Body)
		})
	}
}

func TestClient_FetchForecast_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", server.Client(), zap.NewNop())

	_, err := client.FetchForecast(context.Background(), "臺北市")

	require.Error(t, err)

	var upstream *domain.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestClient_HasCredential(t *testing.T) {
	assert.False(t, NewClient("", "", nil, zap.NewNop()).HasCredential())
	assert.True(t, NewClient("", "key", nil, zap.NewNop()).HasCredential())
}

func TestClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("", "key", nil, zap.NewNop())

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Contains(t, client.forecastURL("臺北市"),
		"https://opendata.cwa.gov.tw/api/v1/rest/datastore/F-C0032-001?")
}
