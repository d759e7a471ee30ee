// Package ranking merges book lists from several catalogs into one ordered,
// duplicate-free list.
//
// Records are scored by metadata completeness using a configurable weight
// table, stably sorted by descending score with Google Books winning ties,
// and then deduplicated keeping the first (best) occurrence of each key.
package ranking

import (
	"slices"
	"strings"
	"unicode/utf8"

	"bookscout/internal/book"
	"bookscout/internal/config"
)

// Weights is the quality score table.
type Weights struct {
	// DescriptionMinLength is the rune count a description needs to score.
	DescriptionMinLength int
	Description          int
	Cover                int
	PublishedDate        int
	Publisher            int
	PageCount            int
	ISBN                 int
	Categories           int
	Rating               int
}

// DefaultWeights returns the stock table.
func DefaultWeights() Weights {
	return Weights{
		DescriptionMinLength: 100,
		Description:          3,
		Cover:                2,
		PublishedDate:        1,
		Publisher:            1,
		PageCount:            1,
		ISBN:                 2,
		Categories:           1,
		Rating:               2,
	}
}

// WeightsFromConfig converts the [ranking] section.
func WeightsFromConfig(cfg config.Ranking) Weights {
	return Weights{
		DescriptionMinLength: cfg.DescriptionMinLength,
		Description:          cfg.Description,
		Cover:                cfg.Cover,
		PublishedDate:        cfg.PublishedDate,
		Publisher:            cfg.Publisher,
		PageCount:            cfg.PageCount,
		ISBN:                 cfg.ISBN,
		Categories:           cfg.Categories,
		Rating:               cfg.Rating,
	}
}

// Engine scores and merges book lists. It is stateless and safe for
// concurrent use.
type Engine struct {
	weights Weights
}

// New returns an engine using weights.
func New(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Score returns the quality score of b.
func (e *Engine) Score(b book.Book) int {
	w := e.weights
	score := 0
	if b.Description != "" && utf8.RuneCountInString(b.Description) >= w.DescriptionMinLength {
		score += w.Description
	}
	if b.Covers.Any() {
		score += w.Cover
	}
	if strings.TrimSpace(b.PublishedDate) != "" {
		score += w.PublishedDate
	}
	if strings.TrimSpace(b.Publisher) != "" {
		score += w.Publisher
	}
	if b.PageCount > 0 {
		score += w.PageCount
	}
	if b.HasISBN() {
		score += w.ISBN
	}
	if len(b.Categories) > 0 {
		score += w.Categories
	}
	if b.AverageRating > 0 {
		score += w.Rating
	}
	return score
}

type scored struct {
	book  book.Book
	score int
}

// MergeAndRank concatenates lists, orders them by descending score (Google
// Books first on ties, input order otherwise) and drops every record that
// shares a dedup key with a higher-ranked one, kept or not. The result is
// never nil.
func (e *Engine) MergeAndRank(lists ...[]book.Book) []book.Book {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	all := make([]scored, 0, total)
	for _, list := range lists {
		for _, b := range list {
			all = append(all, scored{book: b, score: e.Score(b)})
		}
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return sourceRank(a.book.Source) - sourceRank(b.book.Source)
	})

	ordered := make([]book.Book, len(all))
	for i, candidate := range all {
		ordered[i] = candidate.book
	}
	return Dedup(ordered)
}

func sourceRank(source book.Source) int {
	if source == book.SourceGoogle {
		return 0
	}
	return 1
}
