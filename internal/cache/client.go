package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"bookscout/internal/logging"
)

// Stats are cumulative counters since the client was created.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Writes        uint64 `json:"writes"`
	Errors        uint64 `json:"errors"`
	ShortCircuits uint64 `json:"shortCircuits"`
}

// Client is the cache facade used by the rest of the application.
type Client struct {
	backend    Backend
	codec      *codec
	breaker    *Breaker
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger

	hits, misses, writes, errors, shortCircuits atomic.Uint64
}

type clientOptions struct {
	prefix           string
	ttl              time.Duration
	compress         bool
	compressMinBytes int
	threshold        int
	cooldown         time.Duration
	clock            Clock
	logger           *slog.Logger
}

// Option customizes the client.
type Option func(*clientOptions)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(o *clientOptions) { o.prefix = prefix }
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *clientOptions) { o.ttl = ttl }
}

// WithCompression enables zstd for encoded values of at least minBytes.
func WithCompression(minBytes int) Option {
	return func(o *clientOptions) {
		o.compress = true
		o.compressMinBytes = minBytes
	}
}

// WithBreaker tunes the circuit breaker.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(o *clientOptions) {
		o.threshold = threshold
		o.cooldown = cooldown
	}
}

// WithClock overrides the breaker clock (useful for tests).
func WithClock(clock Clock) Option {
	return func(o *clientOptions) { o.clock = clock }
}

// WithLogger attaches a logger for breaker transitions and backend errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// New wraps backend in a Client.
func New(backend Backend, opts ...Option) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	codec, err := newCodec(options.compress, options.compressMinBytes)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(options.logger, "cache").With(logging.String("backend", backend.Name()))
	breaker := NewBreaker(options.threshold, options.cooldown, options.clock)
	breaker.onChange = func(from, to BreakerState) {
		if to == BreakerOpen {
			logging.WarnWithContext(logger, "cache circuit opened", "cache_breaker_open",
				logging.String("from", string(from)),
				logging.String(logging.FieldErrorHint, "check the cache backend; searches continue uncached"),
				logging.String(logging.FieldImpact, "cache reads and writes are skipped until the cooldown ends"),
			)
			return
		}
		logger.Info("cache circuit state changed", logging.String("from", string(from)), logging.String("to", string(to)))
	}
	return &Client{
		backend:    backend,
		codec:      codec,
		breaker:    breaker,
		prefix:     options.prefix,
		defaultTTL: options.ttl,
		logger:     logger,
	}, nil
}

// Get decodes the value stored under key into target and reports whether it
// was found. Backend errors, decode errors and an open breaker read as a miss.
func (c *Client) Get(ctx context.Context, key string, target any) bool {
	if c == nil {
		return false
	}
	if !c.breaker.Allow() {
		c.shortCircuits.Add(1)
		return false
	}
	data, found, err := c.backend.Get(ctx, c.prefix+key)
	if !c.record(err, "get", key) {
		return false
	}
	if !found {
		c.misses.Add(1)
		return false
	}
	if err := c.codec.decode(data, target); err != nil {
		c.misses.Add(1)
		c.logger.Debug("discarding undecodable cache entry", logging.String("key", key), logging.Error(err))
		return false
	}
	c.hits.Add(1)
	return true
}

// Set stores value under key. A ttl <= 0 selects the client default.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := c.codec.encode(value)
	if err != nil {
		c.logger.Debug("cache value not encodable", logging.String("key", key), logging.Error(err))
		return false
	}
	if !c.breaker.Allow() {
		c.shortCircuits.Add(1)
		return false
	}
	if !c.record(c.backend.Set(ctx, c.prefix+key, data, ttl), "set", key) {
		return false
	}
	c.writes.Add(1)
	return true
}

// Delete removes key and reports whether a live entry existed.
func (c *Client) Delete(ctx context.Context, key string) bool {
	if c == nil {
		return false
	}
	if !c.breaker.Allow() {
		c.shortCircuits.Add(1)
		return false
	}
	removed, err := c.backend.Delete(ctx, c.prefix+key)
	if !c.record(err, "delete", key) {
		return false
	}
	return removed
}

// Exists reports whether a live entry is stored under key.
func (c *Client) Exists(ctx context.Context, key string) bool {
	if c == nil {
		return false
	}
	if !c.breaker.Allow() {
		c.shortCircuits.Add(1)
		return false
	}
	exists, err := c.backend.Exists(ctx, c.prefix+key)
	if !c.record(err, "exists", key) {
		return false
	}
	return exists
}

// Clear removes every entry under the client prefix. Unlike the other methods
// it returns backend errors, since it is an explicit operator action.
func (c *Client) Clear(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}
	return c.backend.Clear(ctx, c.prefix)
}

// BackendName returns the name of the wrapped backend, or "none" for a nil client.
func (c *Client) BackendName() string {
	if c == nil {
		return "none"
	}
	return c.backend.Name()
}

// BreakerState returns the current circuit breaker position.
func (c *Client) BreakerState() BreakerState {
	if c == nil {
		return BreakerClosed
	}
	return c.breaker.State()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		Errors:        c.errors.Load(),
		ShortCircuits: c.shortCircuits.Load(),
	}
}

// Close releases the backend and codec resources.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.codec.close()
	return c.backend.Close()
}

// record feeds the breaker and reports whether the call succeeded.
func (c *Client) record(err error, op, key string) bool {
	if err == nil {
		c.breaker.Success()
		return true
	}
	c.errors.Add(1)
	c.breaker.Failure()
	c.logger.Debug("cache backend error",
		logging.String("op", op),
		logging.String("key", key),
		logging.Error(err),
	)
	return false
}

// Get is a typed convenience wrapper around Client.Get.
func Get[T any](ctx context.Context, c *Client, key string) (T, bool) {
	var value T
	if !c.Get(ctx, key, &value) {
		var zero T
		return zero, false
	}
	return value, true
}
