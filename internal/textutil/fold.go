package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases text and strips combining marks, so "Brontë" and "bronte"
// compare equal.
func Fold(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	// transform.Chain keeps internal state and cannot be shared across goroutines.
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// NormalizeKey folds text and reduces it to alphanumeric words separated by
// single spaces. Punctuation is dropped rather than replaced so "Ender's Game"
// and "Enders Game" produce the same key.
func NormalizeKey(text string) string {
	folded := Fold(text)
	if folded == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			pendingSpace = true
		}
	}
	return b.String()
}

// CollapseWhitespace trims text and replaces internal whitespace runs with a
// single space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
