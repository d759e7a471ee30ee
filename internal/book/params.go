package book

import (
	"strconv"
	"strings"

	"bookscout/internal/services"
)

// DefaultMaxResults applies when callers leave MaxResults unset.
const DefaultMaxResults = 20

// Scope restricts which fields a query is matched against.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeTitle  Scope = "title"
	ScopeAuthor Scope = "author"
)

// ParseScope maps user input to a Scope, defaulting to ScopeAll.
func ParseScope(value string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeTitle:
		return ScopeTitle
	case ScopeAuthor:
		return ScopeAuthor
	default:
		return ScopeAll
	}
}

// SearchParams is the caller-supplied query.
type SearchParams struct {
	Query           string `json:"query"`
	AuthorQuery     string `json:"authorQuery,omitempty"`
	MaxResults      int    `json:"maxResults"`
	StartIndex      int    `json:"startIndex"`
	SearchIn        Scope  `json:"searchIn"`
	Language        string `json:"language,omitempty"`
	PublishedAfter  int    `json:"publishedAfter,omitempty"`
	PublishedBefore int    `json:"publishedBefore,omitempty"`
}

// Normalize trims text fields and fills defaults. It never fails; use Validate
// to reject unusable parameters.
func (p SearchParams) Normalize() SearchParams {
	p.Query = strings.Join(strings.Fields(p.Query), " ")
	p.AuthorQuery = strings.Join(strings.Fields(p.AuthorQuery), " ")
	p.Language = strings.TrimSpace(p.Language)
	p.SearchIn = ParseScope(string(p.SearchIn))
	if p.MaxResults <= 0 {
		p.MaxResults = DefaultMaxResults
	}
	if p.StartIndex < 0 {
		p.StartIndex = 0
	}
	if p.PublishedAfter < 0 {
		p.PublishedAfter = 0
	}
	if p.PublishedBefore < 0 {
		p.PublishedBefore = 0
	}
	return p
}

// Validate reports an InvalidQuery error for parameters no catalog can serve.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return services.Wrap(services.ErrInvalidQuery, "search", "validate", "query must not be empty", nil)
	}
	if p.PublishedAfter > 0 && p.PublishedBefore > 0 && p.PublishedAfter > p.PublishedBefore {
		return services.Wrap(services.ErrInvalidQuery, "search", "validate",
			"published_after "+strconv.Itoa(p.PublishedAfter)+" is later than published_before "+strconv.Itoa(p.PublishedBefore), nil)
	}
	return nil
}

// Clamp caps MaxResults at limit. Values at or below the limit pass through.
func (p SearchParams) Clamp(limit int) SearchParams {
	if limit > 0 && p.MaxResults > limit {
		p.MaxResults = limit
	}
	return p
}

// InYearRange reports whether b satisfies the inclusive year bounds. Books
// without a parseable year pass only when no bound is set.
func (p SearchParams) InYearRange(b Book) bool {
	if p.PublishedAfter == 0 && p.PublishedBefore == 0 {
		return true
	}
	year := b.PublishedYear()
	if year == 0 {
		return false
	}
	if p.PublishedAfter > 0 && year < p.PublishedAfter {
		return false
	}
	if p.PublishedBefore > 0 && year > p.PublishedBefore {
		return false
	}
	return true
}

// CacheKey returns a stable representation of every field that changes the
// result set.
func (p SearchParams) CacheKey() string {
	var builder strings.Builder
	builder.WriteString("q=")
	builder.WriteString(strings.ToLower(p.Query))
	builder.WriteString("|a=")
	builder.WriteString(strings.ToLower(p.AuthorQuery))
	builder.WriteString("|in=")
	builder.WriteString(string(p.SearchIn))
	builder.WriteString("|n=")
	builder.WriteString(strconv.Itoa(p.MaxResults))
	builder.WriteString("|s=")
	builder.WriteString(strconv.Itoa(p.StartIndex))
	builder.WriteString("|l=")
	builder.WriteString(strings.ToLower(p.Language))
	builder.WriteString("|y=")
	builder.WriteString(strconv.Itoa(p.PublishedAfter))
	builder.WriteByte('-')
	builder.WriteString(strconv.Itoa(p.PublishedBefore))
	return builder.String()
}

// ResultSource names where a SearchResults envelope came from.
type ResultSource string

const (
	ResultGoogle      ResultSource = ResultSource(SourceGoogle)
	ResultOpenLibrary ResultSource = ResultSource(SourceOpenLibrary)
	ResultCombined    ResultSource = "combined"
	ResultCache       ResultSource = "cache"
)

// SearchResults is the response envelope returned by every search.
type SearchResults struct {
	Books        []Book       `json:"books"`
	TotalItems   int          `json:"totalItems"`
	StartIndex   int          `json:"startIndex"`
	ItemsPerPage int          `json:"itemsPerPage"`
	HasMore      bool         `json:"hasMore"`
	Query        string       `json:"query"`
	Source       ResultSource `json:"source"`
}

// Empty returns a zero-result envelope for params.
func Empty(params SearchParams, source ResultSource) SearchResults {
	return SearchResults{
		Books:      []Book{},
		StartIndex: params.StartIndex,
		Query:      params.Query,
		Source:     source,
	}
}

// Truncate limits the envelope to max books, flagging HasMore when anything
// was cut.
func (r SearchResults) Truncate(max int) SearchResults {
	if max > 0 && len(r.Books) > max {
		r.Books = append([]Book(nil), r.Books[:max]...)
		r.HasMore = true
	}
	if r.Books == nil {
		r.Books = []Book{}
	}
	r.ItemsPerPage = len(r.Books)
	return r
}
