package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type StatisticsConfig struct {
	CacheTTL       time.Duration
	RecentActivity int
	PopularTests   int
}

type statisticsService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	config StatisticsConfig
	logger *slog.Logger
	group  singleflight.Group
}

func NewStatisticsService(repo repositories.Repository, cm *cache.CacheManager, config StatisticsConfig, logger *slog.Logger) StatisticsService {
	if cm == nil {
		cm = cache.NewCacheManager(nil)
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = cache.StatsCacheConfig.TTL
	}
	if config.RecentActivity < 1 {
		config.RecentActivity = 10
	}
	if config.PopularTests < 1 {
		config.PopularTests = 5
	}
	return &statisticsService{
		repo:   repo,
		cache:  cm,
		config: config,
		logger: logger,
	}
}

func (s *statisticsService) TestStatistics(ctx context.Context, testID uint, actor Actor) (*models.TestStatistics, error) {
	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}
	return cachedStats(ctx, s, []string{cache.TestStatsScope(testID)}, func(ctx context.Context) (*models.TestStatistics, error) {
		attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{TestID: &testID})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		return ComputeTestStatistics(testID, attempts), nil
	})
}

func (s *statisticsService) UserStatistics(ctx context.Context, userID uint, actor Actor) (*models.UserStatistics, error) {
	if !actor.canAccessUser(userID) {
		return nil, NewPermissionError(actor.UserID, userID, "statistics", "view", "not the account owner")
	}
	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return nil, repoError(err, ErrUserNotFound, "get user")
	}
	return cachedStats(ctx, s, []string{cache.UserStatsScope(userID), cache.CatalogScope()}, func(ctx context.Context) (*models.UserStatistics, error) {
		attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{UserID: &userID})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		titles, err := s.testTitles(ctx, attempts)
		if err != nil {
			return nil, err
		}
		return ComputeUserStatistics(userID, attempts, titles, s.config.RecentActivity), nil
	})
}

func (s *statisticsService) GlobalStatistics(ctx context.Context, actor Actor) (*models.GlobalStatistics, error) {
	return cachedStats(ctx, s, []string{cache.GlobalStatsScope(), cache.CatalogScope()}, func(ctx context.Context) (*models.GlobalStatistics, error) {
		users, err := s.repo.User().Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		tests, err := s.repo.Test().Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count tests: %w", err)
		}
		attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		titles, err := s.testTitles(ctx, attempts)
		if err != nil {
			return nil, err
		}
		return ComputeGlobalStatistics(users, tests, attempts, titles, s.config.PopularTests), nil
	})
}

func (s *statisticsService) testTitles(ctx context.Context, attempts []*models.TestAttempt) (map[uint]string, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, a := range attempts {
		if !seen[a.TestID] {
			seen[a.TestID] = true
			ids = append(ids, a.TestID)
		}
	}
	titles := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	tests, err := s.repo.Test().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get tests: %w", err)
	}
	for _, t := range tests {
		titles[t.ID] = t.Title
	}
	return titles, nil
}

// cachedStats serves an aggregate keyed by the current generation of every scope it
// depends on; bumping any of them retires the entry. Concurrent misses for the same
// generations share one computation.
func cachedStats[T any](ctx context.Context, s *statisticsService, scopes []string, compute func(context.Context) (*T, error)) (*T, error) {
	parts := make([]string, len(scopes))
	for i, scope := range scopes {
		parts[i] = cache.StatsKey(scope, cache.StatsVersion(ctx, s.cache, scope))
	}
	key := strings.Join(parts, "|")
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		var out T
		err := s.cache.Stats.CacheOrExecute(ctx, key, &out, s.config.CacheTTL, func() (interface{}, error) {
			return compute(ctx)
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Statistics computation shared", "key", key)
	}
	return v.(*T), nil
}
