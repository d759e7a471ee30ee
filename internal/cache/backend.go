package cache

import (
	"context"
	"time"
)

// Backend stores opaque byte values with an optional TTL. A zero TTL means the
// entry never expires.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Clear removes every entry whose key starts with prefix and reports how
	// many were removed.
	Clear(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Clock returns the current time. Backends and the breaker accept one so tests
// can control expiry.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
