package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewWithDB(db, zap.NewNop()), mock
}

func TestLogForecastRequest(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_requests")).
		WithArgs("req-1", "taipei", "臺北市", true, nil, int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pg.LogForecastRequest(context.Background(), ForecastRequest{
		RequestID:      "req-1",
		CityCode:       "taipei",
		LocationName:   "臺北市",
		CacheHit:       true,
		ResponseTimeMs: 3,
	})

	require.NoError(t, err)
}

func TestLogForecastRequest_StoresErrorCode(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_requests")).
		WithArgs(nil, "atlantis", nil, false, "INVALID_CITY_CODE", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pg.LogForecastRequest(context.Background(), ForecastRequest{
		CityCode:  "atlantis",
		ErrorCode: "INVALID_CITY_CODE",
	})

	require.NoError(t, err)
}

func TestLogForecastRequest_ExecError(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_requests")).
		WillReturnError(errors.New("connection reset"))

	err := pg.LogForecastRequest(context.Background(), ForecastRequest{CityCode: "taipei"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetRequestStats(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{
		"total_requests", "avg_response_time", "min_response_time",
		"max_response_time", "cache_hit_rate", "error_count",
	}

	tests := []struct {
		name string
		row  []driver.Value
		want map[string]interface{}
	}{
		{
			name: "populated window",
			row:  []driver.Value{int64(4), 12.5, int64(1), int64(40), 0.75, int64(1)},
			want: map[string]interface{}{
				"since":             "2024-05-01T00:00:00Z",
				"total_requests":    int64(4),
				"avg_response_time": 12.5,
				"min_response_time": int64(1),
				"max_response_time": int64(40),
				"cache_hit_rate":    0.75,
				"error_count":       int64(1),
			},
		},
		{
			name: "empty window",
			row:  []driver.Value{int64(0), nil, nil, nil, nil, nil},
			want: map[string]interface{}{
				"since":             "2024-05-01T00:00:00Z",
				"total_requests":    int64(0),
				"avg_response_time": 0.0,
				"min_response_time": int64(0),
				"max_response_time": int64(0),
				"cache_hit_rate":    0.0,
				"error_count":       int64(0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, mock := newMockDB(t)

			mock.ExpectQuery(regexp.QuoteMeta("FROM forecast_requests")).
				WithArgs(since).
				WillReturnRows(sqlmock.NewRows(columns).AddRow(tt.row...))

			stats, err := pg.GetRequestStats(context.Background(), since)

			require.NoError(t, err)
			assert.Equal(t, tt.want, stats)
		})
	}
}

func TestGetRequestStats_QueryError(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forecast_requests")).
		WillReturnError(errors.New("relation does not exist"))

	_, err := pg.GetRequestStats(context.Background(), time.Now())

	require.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.Contains(t, names, "000001_create_forecast_requests.up.sql")
	assert.Contains(t, names, "000001_create_forecast_requests.down.sql")
}
