package search

import (
	"context"
	"strings"

	"bookscout/internal/book"
	"bookscout/internal/catalog"
	"bookscout/internal/logging"
	"bookscout/internal/services"
)

// GetBookDetails looks up one record. The catalog is inferred from a composed
// id ("google-XYZ"); source disambiguates a bare native id. Unknown ids
// return nil, nil.
func (s *Service) GetBookDetails(ctx context.Context, id string, source book.Source) (*book.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrInvalidQuery, "search", "details", "id must not be empty", nil)
	}
	originalID := id
	if inferred, native, ok := book.SplitID(id); ok && (source == "" || source == inferred) {
		source, originalID = inferred, native
	}
	if !source.Valid() {
		return nil, services.Wrap(services.ErrInvalidQuery, "search", "details", "cannot infer catalog from id "+id, nil)
	}
	adapter, ok := s.adapters[source]
	if !ok || !adapter.IsConfigured() {
		return nil, services.Wrap(services.ErrNoServiceAvailable, string(source), "details", "catalog not configured", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	type detailsResult struct {
		book *book.Book
		err  error
	}
	done := make(chan detailsResult, 1)
	go func() {
		b, err := adapter.GetDetails(callCtx, originalID)
		done <- detailsResult{book: b, err: err}
	}()
	select {
	case <-callCtx.Done():
		return nil, contextError(string(source), "details", callCtx.Err())
	case res := <-done:
		if res.err != nil {
			logging.WithContext(ctx, s.logger).Debug("details lookup failed",
				logging.String(logging.FieldSource, string(source)),
				logging.String("id", originalID),
				logging.Error(res.err),
			)
		}
		return res.book, res.err
	}
}

// SourceStatus describes one catalog for status reporting.
type SourceStatus struct {
	Source        book.Source           `json:"source"`
	Configured    bool                  `json:"configured"`
	MaxResultsCap int                   `json:"maxResultsCap"`
	RateLimit     catalog.RateLimitInfo `json:"rateLimit"`
	Breaker       string                `json:"breaker,omitempty"`
}

type breakerReporter interface {
	BreakerState() string
}

// RateLimit reports quota and health for every registered catalog, Google
// Books first.
func (s *Service) RateLimit() []SourceStatus {
	out := make([]SourceStatus, 0, len(s.adapters))
	for _, source := range []book.Source{book.SourceGoogle, book.SourceOpenLibrary} {
		adapter, ok := s.adapters[source]
		if !ok {
			continue
		}
		status := SourceStatus{
			Source:        source,
			Configured:    adapter.IsConfigured(),
			MaxResultsCap: adapter.MaxResultsCap(),
			RateLimit:     adapter.RateLimitInfo(),
		}
		if reporter, ok := adapter.(breakerReporter); ok {
			status.Breaker = reporter.BreakerState()
		}
		out = append(out, status)
	}
	return out
}

// AvailableStrategies lists every strategy the configured catalogs could
// run, the active one first.
func (s *Service) AvailableStrategies() []Strategy {
	configured := s.configured()
	active := s.Strategy()
	if active.Kind == KindNone {
		return []Strategy{}
	}
	out := []Strategy{active}
	candidates := []Strategy{
		{Kind: KindMerged},
		{Kind: KindPrimaryOnly, Source: s.settings.Primary},
		{Kind: KindPrimaryOnly, Source: s.settings.Primary.Other()},
	}
	for _, candidate := range candidates {
		if candidate == active {
			continue
		}
		switch candidate.Kind {
		case KindMerged:
			if configured[book.SourceGoogle] && configured[book.SourceOpenLibrary] {
				out = append(out, candidate)
			}
		case KindPrimaryOnly:
			if configured[candidate.Source] {
				out = append(out, candidate)
			}
		}
	}
	return out
}

// Status is the aggregate health view served by the API and CLI.
type Status struct {
	Configured          bool           `json:"configured"`
	Strategy            Strategy       `json:"strategy"`
	AvailableStrategies []Strategy     `json:"availableStrategies"`
	Fallback            bool           `json:"fallback"`
	Sources             []SourceStatus `json:"sources"`
	CacheBackend        string         `json:"cacheBackend"`
	CacheBreaker        string         `json:"cacheBreaker,omitempty"`
}

// Status collects the current service view.
func (s *Service) Status() Status {
	strategy := s.Strategy()
	status := Status{
		Configured:          strategy.Kind != KindNone,
		Strategy:            strategy,
		AvailableStrategies: s.AvailableStrategies(),
		Fallback:            s.settings.Fallback,
		Sources:             s.RateLimit(),
		CacheBackend:        s.cache.BackendName(),
	}
	if s.cache != nil {
		status.CacheBreaker = string(s.cache.BreakerState())
	}
	return status
}

// ClearCache drops every cached search and detail entry.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	return s.cache.Clear(ctx)
}
