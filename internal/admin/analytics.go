package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	overviewCacheKey = "admin:analytics:overview"
	overviewCacheTTL = 5 * time.Minute
)

// Analytics serves the platform overview. The aggregate queries are
// expensive, so results are cached in Redis and concurrent cache misses are
// collapsed through singleflight so the counts run once per TTL.
type Analytics struct {
	repo   RepositoryPort
	cache  *redis.Client
	logger *slog.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewAnalytics constructs the analytics service. cache may be nil, which
// disables caching entirely.
func NewAnalytics(repo RepositoryPort, cache *redis.Client, logger *slog.Logger) *Analytics {
	return &Analytics{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Overview returns the current platform statistics, cached for a few
// minutes. Cache failures degrade to a direct computation.
func (a *Analytics) Overview(ctx context.Context) (*Overview, error) {
	if a.cache != nil {
		raw, err := a.cache.Get(ctx, overviewCacheKey).Bytes()
		if err == nil {
			var cached Overview
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			a.logger.Warn("analytics cache read failed", "error", err)
		}
	}

	v, err, _ := a.group.Do(overviewCacheKey, func() (any, error) {
		return a.compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	overview := v.(*Overview)

	if a.cache != nil {
		if raw, err := json.Marshal(overview); err == nil {
			if err := a.cache.Set(ctx, overviewCacheKey, raw, overviewCacheTTL).Err(); err != nil {
				a.logger.Warn("analytics cache write failed", "error", err)
			}
		}
	}
	return overview, nil
}

// Invalidate drops the cached overview, typically after a bulk change.
func (a *Analytics) Invalidate(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Del(ctx, overviewCacheKey).Err(); err != nil && err != redis.Nil {
		a.logger.Warn("analytics cache invalidation failed", "error", err)
	}
}

func (a *Analytics) compute(ctx context.Context) (*Overview, error) {
	byStatus, err := a.repo.CountUsersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byRole, err := a.repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	newUsers, err := a.repo.CountUsersCreatedSince(ctx, a.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byStatus {
		total += n
	}
	return &Overview{
		TotalUsers:     total,
		ActiveUsers:    byStatus["active"],
		SuspendedUsers: byStatus["suspended"],
		DeletedUsers:   byStatus["deleted"],
		ByRole:         byRole,
		NewLast30Days:  newUsers,
		GeneratedAt:    a.now().UTC(),
	}, nil
}
