// Package discovery implements prompt-mode search: an LLM proposes books for
// a free-text request, each proposal is looked up in the catalogs, and the
// matched records are returned in the model's order, topped up with a plain
// search when too few proposals could be found.
//
// Prompt mode never fails harder than plain search. Whenever the
// recommendation or matching stages break, the request is answered by the
// unified search service instead.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bookscout/internal/book"
	"bookscout/internal/catalog"
	"bookscout/internal/config"
	"bookscout/internal/logging"
	"bookscout/internal/metrics"
	"bookscout/internal/ranking"
	"bookscout/internal/recommend"
	"bookscout/internal/services"
	"bookscout/internal/textutil"
)

const (
	defaultBatchSize  = 3
	maxBatchSize      = 3
	defaultMinMatches = 3
	defaultThreshold  = 0.6
	lookupResults     = 5
	lookupTimeout     = 8 * time.Second
	titleWeight       = 0.7
	authorWeight      = 0.3
)

// Mode reports how a Discover call was answered.
type Mode string

const (
	ModeAI     Mode = "ai"
	ModeSearch Mode = "search"
)

// Recommender proposes books for a prompt.
type Recommender interface {
	Configured() bool
	Recommend(ctx context.Context, prompt string, max int) ([]recommend.Suggestion, error)
}

// Searcher runs plain searches.
type Searcher interface {
	SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error)
}

// Settings tunes the pipeline.
type Settings struct {
	Enabled        bool
	BatchSize      int
	BatchDelay     time.Duration
	MinMatches     int
	MatchThreshold float64
	MaxSuggestions int
	// LookupTimeout bounds each per-title catalog lookup.
	LookupTimeout  time.Duration
}

// SettingsFromConfig converts the [discovery] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Enabled:        cfg.Discovery.Enabled,
		BatchSize:      cfg.Discovery.BatchSize,
		BatchDelay:     cfg.DiscoveryBatchDelay(),
		MinMatches:     cfg.Discovery.MinMatches,
		MatchThreshold: cfg.Discovery.MatchThreshold,
		MaxSuggestions: cfg.Discovery.MaxSuggestions,
		LookupTimeout:  cfg.SearchTimeout(),
	}
}

// Match pairs a suggestion with the record chosen for it.
type Match struct {
	Suggestion recommend.Suggestion `json:"suggestion"`
	BookID     string               `json:"bookId"`
	Score      float64              `json:"score"`
}

// Result is the prompt-mode response envelope.
type Result struct {
	book.SearchResults
	Mode        Mode                   `json:"mode"`
	Suggestions []recommend.Suggestion `json:"suggestions,omitempty"`
	Matches     []Match                `json:"matches,omitempty"`
	// FallbackReason explains why plain search answered, when it did.
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// Orchestrator runs the prompt-mode pipeline.
type Orchestrator struct {
	settings    Settings
	recommender Recommender
	searcher    Searcher
	adapters    []catalog.Adapter
	ranker      *ranking.Engine
	logger      *slog.Logger
	metrics     *metrics.Collectors
	sleep       func(context.Context, time.Duration) error
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records pipeline outcomes.
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRanker overrides the default ranking weights.
func WithRanker(r *ranking.Engine) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.ranker = r
		}
	}
}

// WithSleeper replaces the inter-batch wait, mainly for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New builds an orchestrator. Adapters are used for per-title lookups;
// searcher answers plain searches and supplements.
func New(settings Settings, recommender Recommender, searcher Searcher, adapters []catalog.Adapter, opts ...Option) *Orchestrator {
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaultBatchSize
	}
	settings.BatchSize = min(settings.BatchSize, maxBatchSize)
	if settings.MinMatches <= 0 {
		settings.MinMatches = defaultMinMatches
	}
	if settings.MatchThreshold <= 0 {
		settings.MatchThreshold = defaultThreshold
	}
	if settings.LookupTimeout <= 0 {
		settings.LookupTimeout = lookupTimeout
	}
	o := &Orchestrator{
		settings:    settings,
		recommender: recommender,
		searcher:    searcher,
		ranker:      ranking.New(ranking.DefaultWeights()),
		logger:      logging.NewNop(),
		sleep:       sleepContext,
	}
	for _, adapter := range adapters {
		if adapter != nil {
			o.adapters = append(o.adapters, adapter)
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "discovery")
	return o
}

// Available reports whether prompt mode will consult the recommender.
func (o *Orchestrator) Available() bool {
	return o.settings.Enabled && o.recommender != nil && o.recommender.Configured()
}

var errNoLookups = errors.New("every catalog lookup failed")

// Discover answers prompt. params supplies paging and filters; an empty
// params.Query is replaced by the prompt.
func (o *Orchestrator) Discover(ctx context.Context, prompt string, params book.SearchParams) (Result, error) {
	prompt = textutil.CollapseWhitespace(prompt)
	if params.Query == "" {
		params.Query = prompt
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	logger := logging.WithContext(ctx, o.logger)

	if !o.Available() {
		return o.fallback(ctx, params, "recommendations unavailable", nil)
	}
	suggestions, err := o.recommender.Recommend(ctx, prompt, o.settings.MaxSuggestions)
	if err != nil {
		return o.fallback(ctx, params, "recommendation failed", err)
	}
	suggestions = distinct(suggestions)
	if len(suggestions) == 0 {
		return o.fallback(ctx, params, "no suggestions", nil)
	}

	candidates, err := o.lookup(ctx, suggestions, params)
	if err != nil {
		return o.fallback(ctx, params, "catalog lookup failed", err)
	}
	matched, matches := o.match(suggestions, candidates)

	books := matched
	total := len(matched)
	hasMore := false
	if floor := max(o.settings.MinMatches, params.MaxResults/2); len(matched) < floor {
		supplement, err := o.searcher.SearchBooks(ctx, params)
		switch {
		case err != nil && len(matched) == 0:
			return o.fallback(ctx, params, "supplement search failed", err)
		case err != nil:
			logging.WarnWithContext(logger, "supplement search failed", "discovery_supplement_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Int("matched", len(matched)),
				logging.String(logging.FieldImpact, "only AI-matched books are returned"),
			)
		default:
			exclude := make(map[string]struct{}, len(matched))
			for _, b := range matched {
				exclude[b.ID] = struct{}{}
			}
			extra := make([]book.Book, 0, len(supplement.Books))
			for _, b := range supplement.Books {
				if _, ok := exclude[b.ID]; !ok {
					extra = append(extra, b)
				}
			}
			books = append(append([]book.Book{}, matched...), o.ranker.MergeAndRank(extra)...)
			total = max(total+supplement.TotalItems, len(books))
			hasMore = supplement.HasMore
		}
	}

	books = ranking.Dedup(books)
	results := book.SearchResults{
		Books:      books,
		TotalItems: max(total, len(books)),
		StartIndex: params.StartIndex,
		Query:      params.Query,
		Source:     book.ResultCombined,
		HasMore:    hasMore,
	}.Truncate(params.MaxResults)

	o.metrics.ObserveDiscovery(string(ModeAI))
	logger.Info("prompt search completed",
		logging.Int("suggestions", len(suggestions)),
		logging.Int("matched", len(matches)),
		logging.Int("books", len(results.Books)),
	)
	return Result{
		SearchResults: results,
		Mode:          ModeAI,
		Suggestions:   suggestions,
		Matches:       matches,
	}, nil
}

func (o *Orchestrator) fallback(ctx context.Context, params book.SearchParams, reason string, cause error) (Result, error) {
	logger := logging.WithContext(ctx, o.logger)
	if cause != nil {
		logging.WarnWithContext(logger, "prompt search falling back to plain search", "discovery_fallback",
			logging.String("reason", reason),
			logging.String(logging.FieldErrorKind, services.Kind(cause)),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "results are not tailored to the prompt"),
		)
	} else {
		logger.Info("prompt search using plain search", logging.String("reason", reason))
	}
	results, err := o.searcher.SearchBooks(ctx, params)
	if err != nil {
		o.metrics.ObserveDiscovery("error")
		return Result{}, err
	}
	o.metrics.ObserveDiscovery(string(ModeSearch))
	return Result{SearchResults: results, Mode: ModeSearch, FallbackReason: reason}, nil
}

func distinct(suggestions []recommend.Suggestion) []recommend.Suggestion {
	out := make([]recommend.Suggestion, 0, len(suggestions))
	seen := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		key := textutil.NormalizeKey(s.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// lookup searches every adapter for every suggestion, batchSize suggestions
// at a time with BatchDelay between batches. candidates[i] holds the best
// record per adapter for suggestions[i]. Individual lookup failures are
// tolerated; an error is returned only when none succeeded.
func (o *Orchestrator) lookup(ctx context.Context, suggestions []recommend.Suggestion, params book.SearchParams) ([][]scoredBook, error) {
	adapters := make([]catalog.Adapter, 0, len(o.adapters))
	for _, adapter := range o.adapters {
		if adapter.IsConfigured() {
			adapters = append(adapters, adapter)
		}
	}
	if len(adapters) == 0 {
		return nil, services.Wrap(services.ErrNoServiceAvailable, "discovery", "lookup", "no catalog is configured", nil)
	}

	candidates := make([][]scoredBook, len(suggestions))
	var (
		mu        sync.Mutex
		succeeded int
		lastErr   error
	)
	for start := 0; start < len(suggestions); start += o.settings.BatchSize {
		if start > 0 {
			if err := o.sleep(ctx, o.settings.BatchDelay); err != nil {
				return nil, err
			}
		}
		end := min(start+o.settings.BatchSize, len(suggestions))
		var group errgroup.Group
		for i := start; i < end; i++ {
			for _, adapter := range adapters {
				group.Go(func() error {
					query := book.SearchParams{
						Query:       suggestions[i].Title,
						AuthorQuery: suggestions[i].Author,
						SearchIn:    book.ScopeTitle,
						MaxResults:  lookupResults,
						Language:    params.Language,
					}
					res, err := o.searchTitle(ctx, adapter, query)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						lastErr = err
						o.logger.Debug("title lookup failed",
							logging.String(logging.FieldSource, string(adapter.Source())),
							logging.String("title", suggestions[i].Title),
							logging.Error(err),
						)
						return nil
					}
					succeeded++
					if best, ok := o.best(suggestions[i], res.Books, params); ok {
						candidates[i] = append(candidates[i], best)
					}
					return nil
				})
			}
		}
		_ = group.Wait()
	}
	if succeeded == 0 {
		return nil, errors.Join(errNoLookups, lastErr)
	}
	return candidates, nil
}

type lookupResult struct {
	results book.SearchResults
	err     error
}

// searchTitle runs one lookup under LookupTimeout. A reply that arrives after
// the deadline is dropped.
func (o *Orchestrator) searchTitle(ctx context.Context, adapter catalog.Adapter, query book.SearchParams) (book.SearchResults, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, o.settings.LookupTimeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		results, err := adapter.SearchBooks(lookupCtx, query)
		done <- lookupResult{results: results, err: err}
	}()

	select {
	case <-lookupCtx.Done():
		return book.SearchResults{}, services.Wrap(services.ErrTimeout, string(adapter.Source()), "lookup", "title lookup timed out", lookupCtx.Err())
	case res := <-done:
		return res.results, res.err
	}
}

type scoredBook struct {
	book  book.Book
	score float64
}

// best returns the highest scoring record at or above the match threshold.
func (o *Orchestrator) best(s recommend.Suggestion, books []book.Book, params book.SearchParams) (scoredBook, bool) {
	var (
		winner scoredBook
		found  bool
	)
	for _, b := range books {
		if !params.InYearRange(b) {
			continue
		}
		score := MatchScore(s, b)
		if score < o.settings.MatchThreshold {
			continue
		}
		if !found || score > winner.score {
			winner = scoredBook{book: b, score: score}
			found = true
		}
	}
	return winner, found
}

// match walks suggestions in model order and emits the matched records for
// each, the better-ranked catalog record first.
func (o *Orchestrator) match(suggestions []recommend.Suggestion, candidates [][]scoredBook) ([]book.Book, []Match) {
	books := make([]book.Book, 0, len(suggestions))
	matches := make([]Match, 0, len(suggestions))
	for i, s := range suggestions {
		if len(candidates[i]) == 0 {
			continue
		}
		records := make([]book.Book, 0, len(candidates[i]))
		bestScore := 0.0
		for _, c := range candidates[i] {
			records = append(records, c.book)
			bestScore = max(bestScore, c.score)
		}
		ranked := o.ranker.MergeAndRank(records)
		books = append(books, ranked...)
		matches = append(matches, Match{Suggestion: s, BookID: ranked[0].ID, Score: bestScore})
	}
	return books, matches
}

// MatchScore rates how well b fits s in [0, 1]. Title similarity dominates;
// the author only contributes when both sides name one.
func MatchScore(s recommend.Suggestion, b book.Book) float64 {
	title := textutil.TextSimilarity(s.Title, b.Title)
	if b.Subtitle != "" {
		title = max(title, textutil.TextSimilarity(s.Title, b.Title+" "+b.Subtitle))
	}
	if s.Author == "" || len(b.Authors) == 0 {
		return title
	}
	author := 0.0
	for _, a := range b.Authors {
		author = max(author, textutil.TextSimilarity(s.Author, a))
	}
	return titleWeight*title + authorWeight*author
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
