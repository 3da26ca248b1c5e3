package state

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

func redisStoreForTest(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 9})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return NewRedisStore(rdb, time.Minute), rdb
}

func TestRedisStoreCounters(t *testing.T) {
	s, _ := redisStoreForTest(t)
	ctx := context.Background()

	n, err := s.GetFailures(ctx, "payments", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 1; i <= 4; i++ {
		n, err = s.IncrFailures(ctx, "payments", "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, s.ResetFailures(ctx, "payments", "tenant-a"))
	n, err = s.GetFailures(ctx, "payments", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRedisStoreResultsAndSnapshot(t *testing.T) {
	s, _ := redisStoreForTest(t)
	ctx := context.Background()

	rec := model.HealthCheckRecord{
		Service:   "storefront",
		TenantID:  "tenant-a",
		Tier:      model.TierCore,
		Status:    model.StatusDegraded,
		LatencyMs: 240,
		CheckedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.CacheResult(ctx, rec))

	got, ok, err := s.GetResult(ctx, "storefront", "tenant-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.LatencyMs, got.LatencyMs)

	_, ok, err = s.GetResult(ctx, "storefront", "tenant-b")
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "storefront", snap[0].Service)
}

func TestRedisStoreLastRunRoundTrip(t *testing.T) {
	s, _ := redisStoreForTest(t)
	ctx := context.Background()

	_, ok, err := s.GetLastRun(ctx, "postgres")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.SetLastRun(ctx, "postgres", at))
	got, ok, err := s.GetLastRun(ctx, "postgres")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}
