package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

const (
	dashboardCacheKey     = "dashboard:summary"
	dashboardCachePattern = "dashboard:*"
)

type dashboardRepository interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

// DashboardService serves the landing-page counters, cached behind Redis when
// caching is enabled.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger}
}

// Summary returns the dashboard counters, served from cache when fresh. The
// second return value reports whether the cache answered.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if hit, _ := s.cache.Get(ctx, dashboardCacheKey, &cached); hit {
		return &cached, true, nil
	}

	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}

	if err := s.cache.Set(ctx, dashboardCacheKey, summary, 0); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, false, nil
}
