package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

func newRecordedMetrics(t *testing.T) (*HTTPMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m := &HTTPMetrics{
		meter:  mp.Meter(httpInstrumentationName),
		logger: logging.NewNop(),
	}
	m.init()
	return m, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestHTTPMetrics_RecordsPerEndpoint(t *testing.T) {
	m, reader := newRecordedMetrics(t)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/generate", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, StatusMessage{Status: StatusError, Message: missingPrompt})
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/generate"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	metrics := collect(t, reader)
	require.Contains(t, metrics, "eternal.http.requests_total")
	require.Contains(t, metrics, "eternal.http.request_duration_seconds")
	assert.Contains(t, metrics, "eternal.http.response_size_bytes")
	assert.Contains(t, metrics, "eternal.http.active_requests")

	sum, ok := metrics["eternal.http.requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byEndpoint := map[string]int64{}
	for _, dp := range sum.DataPoints {
		endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
		byEndpoint[endpoint.AsString()] += dp.Value
		if endpoint.AsString() == "/api/v1/generate" {
			status, _ := dp.Attributes.Value(attribute.Key("status"))
			assert.Equal(t, int64(http.StatusBadRequest), status.AsInt64())
		}
	}
	assert.Equal(t, map[string]int64{"/health": 2, "/api/v1/generate": 1}, byEndpoint)

	hist, ok := metrics["eternal.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/generate", "/api/v1/generate"},
		{"/api/v1/archive/stats", "/api/v1/archive/stats"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}
