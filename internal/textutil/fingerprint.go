package textutil

import (
	"math"
	"strings"
)

// minTermLength drops articles and initials ("of", "j", "r") from titles and
// author names before they are compared.
const minTermLength = 3

// TermVector counts the terms of a title or author name.
type TermVector struct {
	counts    map[string]float64
	magnitude float64
}

// NewTermVector returns nil when text has no term long enough to count.
func NewTermVector(text string) *TermVector {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	v := &TermVector{counts: make(map[string]float64, len(terms))}
	for _, term := range terms {
		v.counts[term]++
	}
	var sum float64
	for _, n := range v.counts {
		sum += n * n
	}
	v.magnitude = math.Sqrt(sum)
	return v
}

// Terms folds text and splits it on anything outside [a-z0-9], so
// "Catch-22" yields only "catch".
func Terms(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	out := fields[:0]
	for _, field := range fields {
		if len(field) >= minTermLength {
			out = append(out, field)
		}
	}
	return out
}
