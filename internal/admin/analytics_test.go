package admin

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	stubRepo
	computes atomic.Int64
}

func (c *countingRepo) CountUsersByStatus(context.Context) (map[string]int64, error) {
	c.computes.Add(1)
	return map[string]int64{"active": 90, "suspended": 8, "deleted": 2}, nil
}

func (c *countingRepo) CountUsersByRole(context.Context) (map[string]int64, error) {
	return map[string]int64{"user": 95, "admin": 5}, nil
}

func (c *countingRepo) CountUsersCreatedSince(context.Context, time.Time) (int64, error) {
	return 12, nil
}

func newAnalyticsFixture(t *testing.T) (*Analytics, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{}
	a := NewAnalytics(repo, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return a, repo, mr
}

func TestOverviewAggregates(t *testing.T) {
	a, _, _ := newAnalyticsFixture(t)

	overview, err := a.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), overview.TotalUsers)
	assert.Equal(t, int64(90), overview.ActiveUsers)
	assert.Equal(t, int64(8), overview.SuspendedUsers)
	assert.Equal(t, int64(2), overview.DeletedUsers)
	assert.Equal(t, int64(12), overview.NewLast30Days)
	assert.Equal(t, int64(5), overview.ByRole["admin"])
}

func TestOverviewCachesResult(t *testing.T) {
	a, repo, mr := newAnalyticsFixture(t)

	_, err := a.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists(overviewCacheKey))

	_, err = a.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.computes.Load())

	a.Invalidate(context.Background())
	assert.False(t, mr.Exists(overviewCacheKey))

	_, err = a.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), repo.computes.Load())
}

func TestOverviewSurvivesCacheOutage(t *testing.T) {
	a, repo, mr := newAnalyticsFixture(t)
	mr.Close()

	overview, err := a.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), overview.TotalUsers)
	assert.Equal(t, int64(1), repo.computes.Load())
}
