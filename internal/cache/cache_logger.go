package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Generation counter keys for statistics scopes
const (
	globalStatsScope = "global"
	catalogScope     = "catalog"
)

func TestStatsScope(testID uint) string { return fmt.Sprintf("test:%d", testID) }
func UserStatsScope(userID uint) string { return fmt.Sprintf("user:%d", userID) }
func GlobalStatsScope() string          { return globalStatsScope }

// CatalogScope versions test metadata (titles) embedded in user and global aggregates
func CatalogScope() string { return catalogScope }

// StatsKey is the entry key for scope at generation version
func StatsKey(scope string, version int64) string {
	return fmt.Sprintf("%s:v%d", scope, version)
}

func versionKey(scope string) string {
	return "version:" + scope
}

// StatsVersion returns the generation of scope; errors are logged and read as generation 0
func StatsVersion(ctx context.Context, cm *CacheManager, scope string) int64 {
	v, err := cm.Stats.Version(ctx, versionKey(scope))
	if err != nil && !errors.Is(err, ErrCacheNotAvailable) {
		slog.ErrorContext(ctx, "Failed to read stats version",
			"error", err,
			"scope", scope)
	}
	return v
}

// InvalidateStatistics retires every cached aggregate an attempt of userID on testID contributes to
func InvalidateStatistics(ctx context.Context, cm *CacheManager, testID, userID uint) {
	scopes := []string{
		versionKey(TestStatsScope(testID)),
		versionKey(UserStatsScope(userID)),
		versionKey(GlobalStatsScope()),
	}
	if err := cm.Stats.BumpVersion(ctx, scopes...); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate statistics cache",
			"error", err,
			"test_id", testID,
			"user_id", userID)
	}
}

// InvalidateTestStatistics retires cached aggregates of one test, e.g. after it is edited.
// The catalog generation moves too so user aggregates pick up the new title.
func InvalidateTestStatistics(ctx context.Context, cm *CacheManager, testID uint) {
	scopes := []string{
		versionKey(TestStatsScope(testID)),
		versionKey(CatalogScope()),
		versionKey(GlobalStatsScope()),
	}
	if err := cm.Stats.BumpVersion(ctx, scopes...); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate test statistics cache",
			"error", err,
			"test_id", testID)
	}
}

// InvalidateGlobalStatistics retires the global aggregate, e.g. after a user or test is created
func InvalidateGlobalStatistics(ctx context.Context, cm *CacheManager) {
	if err := cm.Stats.BumpVersion(ctx, versionKey(GlobalStatsScope())); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate global statistics cache", "error", err)
	}
}
