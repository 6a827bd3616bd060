package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces per-carrier call budgets shared by every refresher
// process pointed at the same redis. Counters live in minute buckets under
// rl:carrier:{code}:{minute}.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow counts one attempt against the window and reports whether it still
// fits the budget. The INCR and EXPIRE ride one pipeline; the TTL keeps
// abandoned minute buckets from piling up. A zero or negative limit disables
// the check.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if limit <= 0 {
		return true, 0, nil
	}

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "carrier rate limit")
	}

	n := incr.Val()
	return n <= limit, n, nil
}
