package service

import (
	"context"
	"fmt"
	"time"

	"github.com/veloplan/sync-service/pkg/database"
)

// SyncGuard serializes job runs across instances with a Redis lock.
// The lock carries a TTL so a crashed holder never wedges the job
// permanently; a finished run releases it explicitly.
type SyncGuard struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewSyncGuard creates a distributed run guard
func NewSyncGuard(redis *database.Redis, ttl time.Duration) *SyncGuard {
	return &SyncGuard{redis: redis, ttl: ttl}
}

// Acquire takes the named job lock. Returns false when another
// instance already holds it.
func (g *SyncGuard) Acquire(ctx context.Context, jobName string) (bool, error) {
	key := fmt.Sprintf("jobs:lock:%s", jobName)

	ok, err := g.redis.Client.SetNX(ctx, key, time.Now().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire job lock %s: %w", jobName, err)
	}

	return ok, nil
}

// Release frees the named job lock. Missing keys are not an error; the
// TTL may already have expired it.
func (g *SyncGuard) Release(ctx context.Context, jobName string) error {
	key := fmt.Sprintf("jobs:lock:%s", jobName)

	if err := g.redis.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release job lock %s: %w", jobName, err)
	}

	return nil
}
