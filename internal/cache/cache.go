package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort byte cache; a miss or an error never fails the
// caller, it only costs a storage read.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
