package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TransitionGuard admits at most one transition per (freight, driver, status)
// inside a window. INCR + EXPIRE, first writer wins; backstop in front of the
// history-table window query so two racing retries cannot both pass.
type TransitionGuard struct {
	c *redis.Client
}

func NewTransitionGuard(addr string) *TransitionGuard {
	return &TransitionGuard{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (g *TransitionGuard) Acquire(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("transition:%d:%d:%s", freightID, driverID, status)

	pipe := g.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "redis transition guard")
	}
	return incr.Val() == 1, nil
}

// RateLimiter caps reminder fan-out per producer. Same INCR/EXPIRE window as
// the guard, but counting up to a limit instead of admitting one.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}
