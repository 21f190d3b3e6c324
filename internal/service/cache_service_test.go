package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func TestCacheServiceReportRoundTrip(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	_, hit := svc.Report(ctx, "school-1", "term-1")
	assert.False(t, hit)

	svc.StoreReport(ctx, dto.TimetableReport{RunID: "run-1", SchoolID: "school-1", TermID: "term-1", PlacedCount: 12})
	_, stored := repo.items["timetable:report:school-1:term-1"]
	assert.True(t, stored)

	report, hit := svc.Report(ctx, "school-1", "term-1")
	require.True(t, hit)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 12, report.PlacedCount)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceFailuresAreMisses(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, time.Minute, nil, true)

	svc.StoreReport(context.Background(), dto.TimetableReport{SchoolID: "school-1", TermID: "term-1"})
	_, hit := svc.Report(context.Background(), "school-1", "term-1")
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	svc.StoreReport(context.Background(), dto.TimetableReport{SchoolID: "school-1", TermID: "term-1"})
	assert.Empty(t, repo.items)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	_, hit := nilSvc.Report(context.Background(), "school-1", "term-1")
	assert.False(t, hit)
}
