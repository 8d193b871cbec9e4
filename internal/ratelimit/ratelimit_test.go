package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/smallbiznis/crmfeed/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryLocker(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	locker := NewMemoryLocker(clk)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held")

	require.NoError(t, locker.Release(ctx, "k", "other"))
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok, "only the holder releases")

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)

	clk.Advance(time.Minute)
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok, "expired locks are taken over")

	_, _, err = locker.TryLock(ctx, "", time.Minute)
	assert.Error(t, err)
}

func TestSyncLimiterWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:             true,
		SyncTriggerRate:     1,
		SyncTriggerBurst:    1,
		FullSyncLockSeconds: 60,
	}}
	limiter, err := NewSyncLimiter(nil, clock.NewFakeClock(time.Now()), cfg, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.AllowTrigger(ctx)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "triggers are not throttled without redis")
	}

	token, ok, err := limiter.TryLockFullSync(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, _ = limiter.TryLockFullSync(ctx)
	assert.False(t, ok)
	require.NoError(t, limiter.ReleaseFullSync(ctx, token))
	_, ok, _ = limiter.TryLockFullSync(ctx)
	assert.True(t, ok)
}

func TestSyncLimiterDisabled(t *testing.T) {
	limiter, err := NewSyncLimiter(nil, nil, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowTrigger(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, ok, err := limiter.TryLockFullSync(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncLimiterRejectsBadConfig(t *testing.T) {
	_, err := NewSyncLimiter(nil, nil, config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, zap.NewNop())
	assert.Error(t, err)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, defaultBucketTTL(0.2, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 0))
}
