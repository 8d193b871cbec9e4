package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/smallbiznis/crmfeed/internal/config"
	"go.uber.org/zap"
)

const (
	keySyncTrigger  = "crmfeed:ratelimit:sync_trigger"
	keyFullSyncLock = "crmfeed:lock:full_sync"
)

// SyncLimiter throttles event driven CRM triggers and keeps full syncs
// from overlapping. Trigger throttling needs redis; the full sync lock
// falls back to a process local lock.
type SyncLimiter struct {
	bucket *TokenBucket
	locker Locker

	triggerRate  float64
	triggerBurst int
	lockTTL      time.Duration
}

func NewSyncLimiter(client *redis.Client, clk clock.Clock, cfg config.Config, log *zap.Logger) (*SyncLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.SyncTriggerRate <= 0 || limitCfg.SyncTriggerBurst <= 0 {
		return nil, errors.New("sync trigger rate limit must be positive")
	}
	if limitCfg.FullSyncLockSeconds <= 0 {
		return nil, errors.New("full sync lock ttl must be positive")
	}

	limiter := &SyncLimiter{
		triggerRate:  limitCfg.SyncTriggerRate,
		triggerBurst: limitCfg.SyncTriggerBurst,
		lockTTL:      time.Duration(limitCfg.FullSyncLockSeconds) * time.Second,
	}
	if client != nil {
		limiter.bucket = NewTokenBucket(client)
		limiter.locker = NewRedisLocker(client)
	} else {
		log.Named("ratelimit").Info("trigger throttling disabled without redis")
		limiter.locker = NewMemoryLocker(clk)
	}
	return limiter, nil
}

func (l *SyncLimiter) Enabled() bool {
	return l != nil
}

// AllowTrigger reports whether an event driven trigger may go out now.
func (l *SyncLimiter) AllowTrigger(ctx context.Context) (*RateLimitResult, error) {
	if !l.Enabled() || l.bucket == nil {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keySyncTrigger, l.triggerRate, l.triggerBurst)
}

// TryLockFullSync returns a release token when no other full sync runs.
func (l *SyncLimiter) TryLockFullSync(ctx context.Context) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keyFullSyncLock, l.lockTTL)
}

func (l *SyncLimiter) ReleaseFullSync(ctx context.Context, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, keyFullSyncLock, token)
}
