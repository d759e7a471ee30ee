// Package openlibrary adapts the Open Library search and works APIs to the
// catalog contract.
//
// Open Library differs from Google Books in three ways the adapter hides:
// results are works keyed by "/works/OL...W", covers are numeric ids expanded
// against the covers host, and author names on a work record must be fetched
// from separate author documents.
package openlibrary

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bookscout/internal/book"
	"bookscout/internal/cache"
	"bookscout/internal/catalog"
	"bookscout/internal/config"
	"bookscout/internal/language"
	"bookscout/internal/services"
)

const (
	// MaxResultsCap is the largest page search.json serves.
	MaxResultsCap    = 100
	maxCategories    = 5
	maxAuthorLookups = 4
	sourceName       = "open_library"
	defaultCoversURL = "https://covers.openlibrary.org"
	searchFields     = "key,title,subtitle,author_name,first_publish_year,publisher,number_of_pages_median,isbn,subject,language,cover_i,ratings_average,ratings_count"
)

// Client is the Open Library adapter.
type Client struct {
	enabled   bool
	coversURL string
	transport *catalog.Transport
	cache     *cache.Client
	cacheTTL  time.Duration
}

// Option customizes the adapter.
type Option func(*options)

type options struct {
	cache     *cache.Client
	cacheTTL  time.Duration
	transport []catalog.TransportOption
}

// WithCache enables read-through caching of normalized results.
func WithCache(c *cache.Client, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithTransportOptions forwards options to the underlying HTTP transport.
func WithTransportOptions(opts ...catalog.TransportOption) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// New builds the adapter from the [open_library] config section.
func New(cfg config.OpenLibrary, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	covers := strings.TrimRight(strings.TrimSpace(cfg.CoversURL), "/")
	if covers == "" {
		covers = defaultCoversURL
	}
	transport := catalog.NewTransport(catalog.TransportConfig{
		Source:            sourceName,
		BaseURL:           cfg.BaseURL,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout(),
		MaxRetries:        cfg.MaxRetries,
		RetryBaseDelay:    cfg.RetryBaseDelay(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, o.transport...)
	return &Client{
		enabled:   cfg.Enabled,
		coversURL: catalog.SecureURL(covers),
		transport: transport,
		cache:     o.cache,
		cacheTTL:  o.cacheTTL,
	}
}

func (c *Client) Source() book.Source { return book.SourceOpenLibrary }

func (c *Client) MaxResultsCap() int { return MaxResultsCap }

func (c *Client) IsConfigured() bool { return c.enabled }

// RateLimitInfo reports Open Library as unlimited: it publishes no quota and
// needs no key. The local limiter still applies.
func (c *Client) RateLimitInfo() catalog.RateLimitInfo {
	return catalog.RateLimitInfo{
		Unlimited:         true,
		RequestsPerSecond: c.transport.RequestsPerSecond(),
	}
}

// BreakerState exposes the upstream circuit state for status reporting.
func (c *Client) BreakerState() string { return c.transport.BreakerState() }

// SearchBooks queries search.json. MaxResults above the cap is silently lowered.
func (c *Client) SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	params = params.Normalize().Clamp(MaxResultsCap)
	if err := params.Validate(); err != nil {
		return book.SearchResults{}, err
	}
	key := catalog.SearchCacheKey(book.SourceOpenLibrary, params)
	return catalog.ReadThrough(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) (book.SearchResults, error) {
		return c.search(ctx, params)
	}, nil)
}

func (c *Client) search(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	query := BuildQuery(params)
	query.Set("offset", strconv.Itoa(params.StartIndex))
	query.Set("limit", strconv.Itoa(params.MaxResults))
	query.Set("fields", searchFields)

	var payload searchResponse
	if err := c.transport.GetJSON(ctx, "search", "/search.json", query, &payload); err != nil {
		return book.SearchResults{}, err
	}
	if payload.NumFound == nil {
		return book.SearchResults{}, services.Wrap(services.ErrParse, sourceName, "search", "response missing numFound", nil)
	}

	books := make([]book.Book, 0, len(payload.Docs))
	for _, doc := range payload.Docs {
		normalized, ok := c.normalizeDoc(doc)
		if !ok || !params.InYearRange(normalized) {
			continue
		}
		books = append(books, normalized)
	}
	total := *payload.NumFound
	return book.SearchResults{
		Books:        books,
		TotalItems:   total,
		StartIndex:   params.StartIndex,
		ItemsPerPage: len(books),
		HasMore:      params.StartIndex+len(payload.Docs) < total,
		Query:        params.Query,
		Source:       book.ResultOpenLibrary,
	}, nil
}

// BuildQuery renders params as search.json parameters. Field scopes use the
// title and author parameters; year bounds become a first_publish_year range
// in q.
func BuildQuery(params book.SearchParams) url.Values {
	query := url.Values{}
	var q []string
	switch params.SearchIn {
	case book.ScopeTitle:
		query.Set("title", params.Query)
	case book.ScopeAuthor:
		query.Set("author", params.Query)
	default:
		q = append(q, params.Query)
	}
	if params.AuthorQuery != "" && params.SearchIn != book.ScopeAuthor {
		query.Set("author", params.AuthorQuery)
	}
	if params.PublishedAfter > 0 || params.PublishedBefore > 0 {
		q = append(q, "first_publish_year:["+yearBound(params.PublishedAfter)+" TO "+yearBound(params.PublishedBefore)+"]")
	}
	if len(q) > 0 {
		query.Set("q", strings.Join(q, " "))
	}
	if lang := language.ToBibliographic(params.Language); lang != "" {
		query.Set("language", lang)
	}
	return query
}

func yearBound(year int) string {
	if year <= 0 {
		return "*"
	}
	return strconv.Itoa(year)
}

// GetDetails fetches a work and resolves its author names. Unknown ids yield
// nil, nil.
func (c *Client) GetDetails(ctx context.Context, originalID string) (*book.Book, error) {
	originalID = strings.TrimPrefix(strings.TrimSpace(originalID), "/works/")
	if originalID == "" {
		return nil, nil
	}
	key := catalog.DetailsCacheKey(book.SourceOpenLibrary, originalID)
	return catalog.ReadThrough(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) (*book.Book, error) {
		return c.details(ctx, originalID)
	}, func(b *book.Book) bool { return b != nil })
}

func (c *Client) details(ctx context.Context, originalID string) (*book.Book, error) {
	var payload work
	err := c.transport.GetJSON(ctx, "details", "/works/"+url.PathEscape(originalID)+".json", nil, &payload)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	authors := c.authorNames(ctx, payload.Authors)
	normalized, ok := c.normalizeWork(originalID, payload, authors)
	if !ok {
		return nil, nil
	}
	return &normalized, nil
}

// authorNames resolves author keys concurrently. Lookups that fail are
// skipped; a work with unresolvable authors is still a usable record.
func (c *Client) authorNames(ctx context.Context, refs []authorRef) []string {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		if key := strings.TrimSpace(ref.Author.Key); strings.HasPrefix(key, "/authors/") {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxAuthorLookups)
	for i, key := range keys {
		group.Go(func() error {
			var a author
			if err := c.transport.GetJSON(groupCtx, "author", key+".json", nil, &a); err != nil {
				return nil
			}
			names[i] = strings.TrimSpace(a.Name)
			return nil
		})
	}
	_ = group.Wait()
	return catalog.CapList(names, 0)
}
