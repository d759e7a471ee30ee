package catalog

import (
	"context"
	"time"

	"bookscout/internal/book"
	"bookscout/internal/cache"
)

// SearchCacheKey identifies one adapter search in the shared cache.
func SearchCacheKey(source book.Source, params book.SearchParams) string {
	return "catalog:" + string(source) + ":search:" + params.CacheKey()
}

// DetailsCacheKey identifies one adapter detail lookup in the shared cache.
func DetailsCacheKey(source book.Source, originalID string) string {
	return "catalog:" + string(source) + ":details:" + originalID
}

// ReadThrough returns the cached value for key, or calls load and stores the
// result when keep reports it worth caching. A nil keep caches every
// successful load; a nil client always calls load.
func ReadThrough[T any](ctx context.Context, c *cache.Client, key string, ttl time.Duration, load func(context.Context) (T, error), keep func(T) bool) (T, error) {
	if value, ok := cache.Get[T](ctx, c, key); ok {
		return value, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if keep == nil || keep(value) {
		c.Set(ctx, key, value, ttl)
	}
	return value, nil
}
