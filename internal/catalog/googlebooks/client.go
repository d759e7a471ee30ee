// Package googlebooks adapts the Google Books volumes API to the catalog
// contract.
package googlebooks

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookscout/internal/book"
	"bookscout/internal/cache"
	"bookscout/internal/catalog"
	"bookscout/internal/config"
	"bookscout/internal/language"
	"bookscout/internal/services"
)

const (
	// MaxResultsCap is the largest page the volumes endpoint returns.
	MaxResultsCap = 40
	maxCategories = 5
	sourceName    = "google_books"
)

// Client is the Google Books adapter.
type Client struct {
	enabled   bool
	apiKey    string
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

// New builds the adapter from the [google_books] config section.
func New(cfg config.Catalog, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
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
		apiKey:    strings.TrimSpace(cfg.APIKey),
		transport: transport,
		cache:     o.cache,
		cacheTTL:  o.cacheTTL,
	}
}

func (c *Client) Source() book.Source { return book.SourceGoogle }

func (c *Client) MaxResultsCap() int { return MaxResultsCap }

// IsConfigured reports whether the adapter is enabled. The volumes API
// answers anonymous requests, so a key only raises the quota.
func (c *Client) IsConfigured() bool { return c.enabled }

func (c *Client) RateLimitInfo() catalog.RateLimitInfo {
	return catalog.RateLimitInfo{
		HasKey:            c.apiKey != "",
		RequestsPerSecond: c.transport.RequestsPerSecond(),
	}
}

// BreakerState exposes the upstream circuit state for status reporting.
func (c *Client) BreakerState() string { return c.transport.BreakerState() }

// SearchBooks queries /volumes. MaxResults above the cap is silently lowered.
func (c *Client) SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	params = params.Normalize().Clamp(MaxResultsCap)
	if err := params.Validate(); err != nil {
		return book.SearchResults{}, err
	}
	key := catalog.SearchCacheKey(book.SourceGoogle, params)
	return catalog.ReadThrough(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) (book.SearchResults, error) {
		return c.search(ctx, params)
	}, nil)
}

func (c *Client) search(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	query := url.Values{}
	query.Set("q", BuildQuery(params))
	query.Set("startIndex", strconv.Itoa(params.StartIndex))
	query.Set("maxResults", strconv.Itoa(params.MaxResults))
	query.Set("printType", "books")
	if lang := language.ToISO2(params.Language); lang != "" {
		query.Set("langRestrict", lang)
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	var payload volumesResponse
	if err := c.transport.GetJSON(ctx, "search", "/volumes", query, &payload); err != nil {
		return book.SearchResults{}, err
	}
	if payload.TotalItems == nil {
		return book.SearchResults{}, services.Wrap(services.ErrParse, sourceName, "search", "response missing totalItems", nil)
	}

	books := make([]book.Book, 0, len(payload.Items))
	for _, item := range payload.Items {
		normalized, ok := normalizeVolume(item)
		if !ok || !params.InYearRange(normalized) {
			continue
		}
		books = append(books, normalized)
	}

	total := *payload.TotalItems
	return book.SearchResults{
		Books:        books,
		TotalItems:   total,
		StartIndex:   params.StartIndex,
		ItemsPerPage: len(books),
		HasMore:      params.StartIndex+len(payload.Items) < total,
		Query:        params.Query,
		Source:       book.ResultGoogle,
	}, nil
}

// GetDetails fetches a single volume. Unknown ids yield nil, nil.
func (c *Client) GetDetails(ctx context.Context, originalID string) (*book.Book, error) {
	originalID = strings.TrimSpace(originalID)
	if originalID == "" {
		return nil, nil
	}
	key := catalog.DetailsCacheKey(book.SourceGoogle, originalID)
	return catalog.ReadThrough(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) (*book.Book, error) {
		return c.details(ctx, originalID)
	}, func(b *book.Book) bool { return b != nil })
}

func (c *Client) details(ctx context.Context, originalID string) (*book.Book, error) {
	query := url.Values{}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	var payload volume
	err := c.transport.GetJSON(ctx, "details", "/volumes/"+url.PathEscape(originalID), query, &payload)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if payload.ID == "" {
		payload.ID = originalID
	}
	normalized, ok := normalizeVolume(payload)
	if !ok {
		return nil, nil
	}
	return &normalized, nil
}

// BuildQuery renders params in the volumes search grammar.
func BuildQuery(params book.SearchParams) string {
	var parts []string
	switch params.SearchIn {
	case book.ScopeTitle:
		parts = append(parts, scoped("intitle", params.Query))
	case book.ScopeAuthor:
		parts = append(parts, scoped("inauthor", params.Query))
	default:
		parts = append(parts, params.Query)
	}
	if params.AuthorQuery != "" && params.SearchIn != book.ScopeAuthor {
		parts = append(parts, scoped("inauthor", params.AuthorQuery))
	}
	return strings.Join(parts, " ")
}

func scoped(field, value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, `"`, ""))
	if strings.ContainsRune(value, ' ') {
		return field + `:"` + value + `"`
	}
	return field + ":" + value
}
