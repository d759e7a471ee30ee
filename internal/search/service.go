// Package search implements the unified search service that fronts both
// catalog adapters.
//
// A search first resolves a Strategy from configuration and adapter
// availability, then serves the request from the result cache, joins an
// identical in-flight search, or runs the strategy. Every adapter call is
// bounded by its own deadline; results that arrive late are discarded.
package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bookscout/internal/book"
	"bookscout/internal/cache"
	"bookscout/internal/catalog"
	"bookscout/internal/config"
	"bookscout/internal/logging"
	"bookscout/internal/metrics"
	"bookscout/internal/ranking"
	"bookscout/internal/services"
)

const (
	defaultCallTimeout = 8 * time.Second
	tracerName         = "bookscout/search"
)

// Settings controls strategy selection and call bounds.
type Settings struct {
	Primary  book.Source
	Merge    bool
	Fallback bool
	// Timeout bounds each adapter call.
	Timeout  time.Duration
	CacheTTL time.Duration
}

// SettingsFromConfig converts the [search] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	primary, ok := book.ParseSource(cfg.Search.Primary)
	if !ok {
		primary = book.SourceGoogle
	}
	return Settings{
		Primary:  primary,
		Merge:    cfg.Search.Merge,
		Fallback: cfg.Search.Fallback,
		Timeout:  cfg.SearchTimeout(),
		CacheTTL: cfg.SearchCacheTTL(),
	}
}

// Service is the public search surface.
type Service struct {
	settings Settings
	adapters map[book.Source]catalog.Adapter
	ranker   *ranking.Engine
	cache    *cache.Client
	logger   *slog.Logger
	metrics  *metrics.Collectors
	tracer   trace.Tracer
	inflight singleflight.Group
}

// Option customizes the service.
type Option func(*Service)

// WithCache enables the whole-result cache.
func WithCache(c *cache.Client) Option {
	return func(s *Service) { s.cache = c }
}

// WithRanker overrides the default ranking weights.
func WithRanker(r *ranking.Engine) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records search outcomes.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the service over the given adapters. Nil adapters are ignored;
// a later adapter for the same source replaces an earlier one.
func New(settings Settings, adapters []catalog.Adapter, opts ...Option) *Service {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultCallTimeout
	}
	if !settings.Primary.Valid() {
		settings.Primary = book.SourceGoogle
	}
	s := &Service{
		settings: settings,
		adapters: make(map[book.Source]catalog.Adapter, len(adapters)),
		ranker:   ranking.New(ranking.DefaultWeights()),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, adapter := range adapters {
		if adapter != nil {
			s.adapters[adapter.Source()] = adapter
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "search")
	return s
}

func (s *Service) configured() map[book.Source]bool {
	out := make(map[book.Source]bool, len(s.adapters))
	for source, adapter := range s.adapters {
		out[source] = adapter.IsConfigured()
	}
	return out
}

// Strategy returns the strategy a search would use right now.
func (s *Service) Strategy() Strategy {
	return Select(s.settings.Merge, s.settings.Primary, s.configured())
}

// IsConfigured reports whether at least one catalog can serve searches.
func (s *Service) IsConfigured() bool {
	return s.Strategy().Kind != KindNone
}

// SearchBooks runs params through the current strategy.
func (s *Service) SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return book.SearchResults{}, err
	}
	strategy := s.Strategy()
	if strategy.Kind == KindNone {
		return book.SearchResults{}, services.Wrap(services.ErrNoServiceAvailable, "search", "select strategy", "no catalog is configured", nil)
	}

	ctx, span := s.tracer.Start(ctx, "search.books", trace.WithAttributes(
		attribute.String("search.strategy", strategy.String()),
		attribute.Int("search.max_results", params.MaxResults),
	))
	defer span.End()
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()

	key := resultCacheKey(strategy, params)
	if cached, ok := cache.Get[book.SearchResults](ctx, s.cache, key); ok {
		cached.Source = book.ResultCache
		cached.Query = params.Query
		s.finish(span, strategy, cached, nil, start)
		logger.Debug("search served from cache", logging.String("key", key))
		return cached, nil
	}

	ch := s.inflight.DoChan(key, func() (any, error) {
		// Shared by every caller joining this flight, so it must not die with
		// the first caller's context. Per-call deadlines still apply.
		flightCtx := context.WithoutCancel(ctx)
		results, degraded, err := s.run(flightCtx, strategy, params)
		if err == nil && !degraded {
			s.cache.Set(flightCtx, key, results, s.settings.CacheTTL)
		}
		return results, err
	})

	select {
	case <-ctx.Done():
		err := contextError("search", "search", ctx.Err())
		s.finish(span, strategy, book.SearchResults{}, err, start)
		return book.SearchResults{}, err
	case res := <-ch:
		if res.Err != nil {
			s.finish(span, strategy, book.SearchResults{}, res.Err, start)
			logger.Info("search failed",
				logging.String("strategy", strategy.String()),
				logging.String(logging.FieldErrorKind, services.Kind(res.Err)),
				logging.Error(res.Err),
			)
			return book.SearchResults{}, res.Err
		}
		results := res.Val.(book.SearchResults)
		results.Query = params.Query
		s.finish(span, strategy, results, nil, start)
		logger.Debug("search completed",
			logging.String("strategy", strategy.String()),
			logging.String("result_source", string(results.Source)),
			logging.Int("books", len(results.Books)),
			logging.Bool("shared", res.Shared),
			logging.Duration("elapsed", time.Since(start)),
		)
		return results, nil
	}
}

func (s *Service) finish(span trace.Span, strategy Strategy, results book.SearchResults, err error, start time.Time) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, services.Kind(err))
		s.metrics.ObserveSearch(strategy.String(), "error", time.Since(start))
		return
	}
	span.SetAttributes(
		attribute.String("search.result_source", string(results.Source)),
		attribute.Int("search.books", len(results.Books)),
	)
	s.metrics.ObserveSearch(strategy.String(), string(results.Source), time.Since(start))
}

// run executes strategy. degraded reports that a catalog failed and the
// results come from the other one alone; such results are not cached.
func (s *Service) run(ctx context.Context, strategy Strategy, params book.SearchParams) (results book.SearchResults, degraded bool, err error) {
	switch strategy.Kind {
	case KindMerged:
		return s.merged(ctx, params)
	case KindPrimaryOnly:
		return s.single(ctx, strategy.Source, params)
	default:
		return book.SearchResults{}, false, services.Wrap(services.ErrNoServiceAvailable, "search", "run", "no catalog is configured", nil)
	}
}

// single queries one catalog and, when fallback is on, retries once on the
// other. If the fallback also fails the first error is returned.
func (s *Service) single(ctx context.Context, source book.Source, params book.SearchParams) (book.SearchResults, bool, error) {
	results, err := s.call(ctx, source, params)
	if err == nil {
		return results, false, nil
	}
	other := source.Other()
	adapter, ok := s.adapters[other]
	if !s.settings.Fallback || !ok || !adapter.IsConfigured() {
		return book.SearchResults{}, false, err
	}

	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "catalog search failed, falling back", "search_fallback",
		logging.String(logging.FieldSource, string(source)),
		logging.String("fallback", string(other)),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the catalog status or raise search.timeout_ms"),
		logging.String(logging.FieldImpact, "results come from a single fallback catalog"),
	)
	fallback, fallbackErr := s.call(ctx, other, params)
	s.metrics.ObserveFallback(string(source), string(other), fallbackErr == nil)
	if fallbackErr != nil {
		s.logger.Debug("fallback search failed", logging.String(logging.FieldSource, string(other)), logging.Error(fallbackErr))
		return book.SearchResults{}, false, err
	}
	return fallback, true, nil
}

// merged splits the page across both catalogs, waits for both to settle and
// merges whatever succeeded.
func (s *Service) merged(ctx context.Context, params book.SearchParams) (book.SearchResults, bool, error) {
	primary := s.settings.Primary
	secondary := primary.Other()
	primaryParams, secondaryParams := splitParams(params)

	var (
		group                    errgroup.Group
		primaryRes, secondaryRes book.SearchResults
		primaryErr, secondaryErr error
	)
	group.Go(func() error {
		primaryRes, primaryErr = s.call(ctx, primary, primaryParams)
		return nil
	})
	group.Go(func() error {
		secondaryRes, secondaryErr = s.call(ctx, secondary, secondaryParams)
		return nil
	})
	_ = group.Wait()

	switch {
	case primaryErr != nil && secondaryErr != nil:
		s.logger.Debug("both catalogs failed", logging.Error(secondaryErr))
		return book.SearchResults{}, false, primaryErr
	case primaryErr != nil:
		s.warnPartial(ctx, primary, primaryErr)
		return s.widen(ctx, secondary, secondaryParams, secondaryRes, params.MaxResults), true, nil
	case secondaryErr != nil:
		s.warnPartial(ctx, secondary, secondaryErr)
		return s.widen(ctx, primary, primaryParams, primaryRes, params.MaxResults), true, nil
	}

	google, openLibrary := primaryRes, secondaryRes
	if primary != book.SourceGoogle {
		google, openLibrary = secondaryRes, primaryRes
	}
	books := s.ranker.MergeAndRank(google.Books, openLibrary.Books)
	results := book.SearchResults{
		Books:      books,
		TotalItems: max(primaryRes.TotalItems, secondaryRes.TotalItems),
		StartIndex: params.StartIndex,
		Query:      params.Query,
		Source:     book.ResultCombined,
		HasMore:    primaryRes.HasMore || secondaryRes.HasMore,
	}
	return results.Truncate(params.MaxResults), false, nil
}

// widen asks the surviving catalog of a merged search for the whole page when
// its half came back full. The half page stands if the second call fails.
func (s *Service) widen(ctx context.Context, source book.Source, half book.SearchParams, results book.SearchResults, maxResults int) book.SearchResults {
	if half.MaxResults >= maxResults || len(results.Books) < half.MaxResults {
		return results.Truncate(maxResults)
	}
	full := half
	full.MaxResults = maxResults
	wider, err := s.call(ctx, source, full)
	if err != nil {
		s.logger.Debug("widening surviving catalog page failed",
			logging.String(logging.FieldSource, string(source)),
			logging.Error(err),
		)
		return results.Truncate(maxResults)
	}
	return wider
}

func (s *Service) warnPartial(ctx context.Context, source book.Source, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "catalog failed during merged search", "search_partial",
		logging.String(logging.FieldSource, string(source)),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "results come from one catalog only"),
	)
}

// splitParams divides the page between the primary (rounded up) and the
// secondary catalog. Offsets are halved so consecutive pages advance both.
func splitParams(params book.SearchParams) (book.SearchParams, book.SearchParams) {
	primary, secondary := params, params
	primary.MaxResults = (params.MaxResults + 1) / 2
	secondary.MaxResults = max(params.MaxResults-primary.MaxResults, 1)
	primary.StartIndex = params.StartIndex / 2
	secondary.StartIndex = params.StartIndex / 2
	return primary, secondary
}

type callResult struct {
	results book.SearchResults
	err     error
}

// call runs one adapter search under the per-call deadline. A result that
// arrives after the deadline is dropped.
func (s *Service) call(ctx context.Context, source book.Source, params book.SearchParams) (book.SearchResults, error) {
	adapter, ok := s.adapters[source]
	if !ok || !adapter.IsConfigured() {
		return book.SearchResults{}, services.Wrap(services.ErrNoServiceAvailable, string(source), "search", "catalog not configured", nil)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		results, err := adapter.SearchBooks(callCtx, params)
		done <- callResult{results: results, err: err}
	}()

	select {
	case <-callCtx.Done():
		return book.SearchResults{}, contextError(string(source), "search", callCtx.Err())
	case res := <-done:
		if res.err != nil {
			if callCtx.Err() != nil && !errors.Is(res.err, services.ErrTimeout) {
				return book.SearchResults{}, contextError(string(source), "search", callCtx.Err())
			}
			return book.SearchResults{}, res.err
		}
		return res.results.Truncate(params.MaxResults), nil
	}
}

func contextError(source, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, source, operation, "timed out", err)
	}
	return services.Wrap(services.ErrNetwork, source, operation, "canceled", err)
}

func resultCacheKey(strategy Strategy, params book.SearchParams) string {
	return "search:" + strategy.String() + ":" + params.CacheKey()
}
