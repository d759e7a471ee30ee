// Package cache implements the key-value cache the catalog adapters and the
// search service read through.
//
// A Client wraps one Backend (in-process memory, SQLite via modernc.org/sqlite,
// or Redis via go-redis) and adds JSON encoding with optional zstd compression
// of large values. Keys are prefixed and calls pass through a circuit breaker. The cache is always an
// optimization: every Client method degrades to a miss or a no-op when the
// backend fails or the breaker is open, and a nil *Client behaves the same way.
//
// # Circuit breaker
//
// After Threshold consecutive backend failures the breaker opens and every
// call short-circuits for Cooldown. The next call after the cooldown is let
// through in the half-open state; success closes the breaker and failure
// re-opens it. The clock is injectable so tests can advance time.
package cache
