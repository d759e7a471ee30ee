// Package textutil folds titles and author names into comparison keys and
// scores how closely a suggested title matches a catalog record.
//
// NormalizeKey feeds the dedup keys. TextSimilarity compares titles by exact
// key, word-aligned prefix, and finally by the cosine of their term counts.
// Terms are folded ASCII words of three or more characters, so initials and
// short articles carry no weight.
package textutil
