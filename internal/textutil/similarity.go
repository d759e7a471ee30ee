package textutil

import "strings"

// CosineSimilarity is 0 when either vector is nil or empty.
func CosineSimilarity(a, b *TermVector) float64 {
	if a == nil || b == nil || a.magnitude == 0 || b.magnitude == 0 {
		return 0
	}
	var dot float64
	for term, n := range a.counts {
		dot += n * b.counts[term]
	}
	return dot / (a.magnitude * b.magnitude)
}

// prefixMatchScore is awarded when one normalized title is a word-aligned
// prefix of the other ("the hobbit" vs "the hobbit or there and back again").
const prefixMatchScore = 0.9

// TextSimilarity scores two short strings such as book titles in [0, 1].
// Identical normalized keys score 1, word-aligned prefixes score at least 0.9,
// and everything else falls back to term cosine similarity.
func TextSimilarity(a, b string) float64 {
	ka, kb := NormalizeKey(a), NormalizeKey(b)
	if ka == "" || kb == "" {
		return 0
	}
	if ka == kb {
		return 1
	}
	score := CosineSimilarity(NewTermVector(ka), NewTermVector(kb))
	if wordPrefix(ka, kb) || wordPrefix(kb, ka) {
		score = max(score, prefixMatchScore)
	}
	return score
}

func wordPrefix(short, long string) bool {
	if len(short) >= len(long) || !strings.HasPrefix(long, short) {
		return false
	}
	return long[len(short)] == ' '
}
