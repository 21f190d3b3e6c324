package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheService keeps the latest committed report of each school term in the
// cache so report reads skip the database.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Report returns the cached report for a school term. Lookup failures are
// logged and reported as a miss.
func (s *CacheService) Report(ctx context.Context, schoolID, termID string) (*dto.TimetableReport, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := reportCacheKey(schoolID, termID)
	start := time.Now()
	var report dto.TimetableReport
	err := s.repo.Get(ctx, key, &report)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &report, true
}

// StoreReport writes report under its school term key.
func (s *CacheService) StoreReport(ctx context.Context, report dto.TimetableReport) {
	if !s.Enabled() {
		return
	}
	key := reportCacheKey(report.SchoolID, report.TermID)
	start := time.Now()
	err := s.repo.Set(ctx, key, report, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func reportCacheKey(schoolID, termID string) string {
	return fmt.Sprintf("timetable:report:%s:%s", schoolID, termID)
}
