package outbound

import (
	"context"
	"fmt"
	"time"

	"voice-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const placementCapKeyPrefix = "voice:placements:inflight:"

// RedisLimiter caps in-flight placements per tenant across API replicas.
// The key TTL bounds slots leaked by a crashed process.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) Acquire(ctx context.Context, tenantID string) (func(), error) {
	if l == nil || l.limit <= 0 {
		return func() {}, nil
	}
	key := placementCapKeyPrefix + tenantID
	ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, key, l.limit, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("outbound: acquire placement slot: %w", err)
	}
	if !ok {
		return nil, ErrTooManyPlacements
	}
	return func() {
		// The request context may already be cancelled; release must still run.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseConcurrencyCap(rctx, l.rdb, key)
	}, nil
}
