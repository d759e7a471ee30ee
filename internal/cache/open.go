package cache

import (
	"context"
	"fmt"
	"log/slog"

	"bookscout/internal/config"
)

// Open builds the Client described by cfg.Cache. A "none" backend returns a
// nil Client, which behaves as a permanently empty cache.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "memory", "":
		backend = NewMemoryBackend(nil)
	case "sqlite":
		backend, err = OpenSQLite(ctx, cfg.Cache.SQLitePath, nil)
	case "redis":
		backend, err = OpenRedis(ctx, cfg.Cache.RedisURL)
	default:
		return nil, fmt.Errorf("cache backend %q not supported", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithPrefix(cfg.Cache.KeyPrefix),
		WithDefaultTTL(cfg.CacheTTL()),
		WithBreaker(cfg.Cache.BreakerThreshold, cfg.BreakerCooldown()),
		WithLogger(logger),
	}
	if cfg.Cache.Compression {
		opts = append(opts, WithCompression(cfg.Cache.CompressionMinBytes))
	}
	client, err := New(backend, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return client, nil
}
