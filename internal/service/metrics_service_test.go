package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceObserveGeneration(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveGeneration(GenerationSample{Duration: time.Second, Placed: 28, Unplaced: 2, Attempts: 140, Backtracks: 3, BudgetExhausted: true})
	metrics.ObserveGeneration(GenerationSample{Duration: time.Second, Placed: 30, Attempts: 30, Complete: true})

	assert.Equal(t, 58.0, testutil.ToFloat64(metrics.lessons.WithLabelValues("placed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.lessons.WithLabelValues("unplaced")))
	assert.Equal(t, 170.0, testutil.ToFloat64(metrics.searchAttempts))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.searchBacktracks))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.budgetExhausted))
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)

	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(metrics.cacheHitRatio), 1e-9)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/schools/:schoolId/timetables/generate", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveGenerationFailure(time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "http_requests_total"))
	assert.True(t, strings.Contains(body, `timetable_generation_duration_seconds_count{outcome="failed"} 1`))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveGeneration(GenerationSample{})
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveDBQuery("q", time.Millisecond)
	})
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
