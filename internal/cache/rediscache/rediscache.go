// Package rediscache holds the redis-backed pieces of the freight hot path:
// the projection cache behind the effective-status resolver, the transition
// idempotency guard and the per-caller API rate limiter.
package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores serialized status projections keyed per freight and
// viewer. A miss is never a failure: the resolver recomputes from the
// progress rows and re-primes.
type RedisCache struct {
	c *redis.Client
}

func New(addr string) *RedisCache {
	return &RedisCache{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

// Get returns the cached projection bytes and whether the key was present.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

// Set primes a projection for the resolver's TTL. Overwrites are expected:
// the write path primes the same viewer key on every applied transition.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
