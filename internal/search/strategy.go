package search

import "bookscout/internal/book"

// Kind discriminates the Strategy union.
type Kind string

const (
	// KindMerged queries both catalogs concurrently and merges the results.
	KindMerged Kind = "merged"
	// KindPrimaryOnly queries a single catalog, with optional fallback.
	KindPrimaryOnly Kind = "primary_only"
	// KindNone means no catalog is usable.
	KindNone Kind = "none"
)

// Strategy describes how a search is executed. Source is set only for
// KindPrimaryOnly.
type Strategy struct {
	Kind   Kind        `json:"kind"`
	Source book.Source `json:"source,omitempty"`
}

func (s Strategy) String() string {
	if s.Kind == KindPrimaryOnly {
		return string(s.Kind) + ":" + string(s.Source)
	}
	return string(s.Kind)
}

// Select picks a strategy from the merge setting, the preferred primary
// catalog and which catalogs are configured. It has no side effects.
func Select(merge bool, primary book.Source, configured map[book.Source]bool) Strategy {
	if !primary.Valid() {
		primary = book.SourceGoogle
	}
	other := primary.Other()
	switch {
	case merge && configured[primary] && configured[other]:
		return Strategy{Kind: KindMerged}
	case configured[primary]:
		return Strategy{Kind: KindPrimaryOnly, Source: primary}
	case configured[other]:
		return Strategy{Kind: KindPrimaryOnly, Source: other}
	default:
		return Strategy{Kind: KindNone}
	}
}
