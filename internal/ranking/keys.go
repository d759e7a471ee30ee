package ranking

import (
	"slices"
	"strings"

	"bookscout/internal/book"
	"bookscout/internal/textutil"
)

// Key returns the primary dedup key: "isbn:{isbn13}" when the record carries
// an ISBN (ISBN-10 is converted), else "{title}|{sorted authors}".
func Key(b book.Book) string {
	if isbn := canonicalISBN(b); isbn != "" {
		return "isbn:" + isbn
	}
	return titleKey(b)
}

// Keys returns every key under which b is considered a duplicate. Besides the
// primary key, records with an ISBN and at least one author also claim their
// title key, so the same work listed under different editions' ISBNs by two
// catalogs collapses to one.
func Keys(b book.Book) []string {
	keys := make([]string, 0, 3)
	if b.ISBN13 != "" {
		if isbn := normalizeISBN(b.ISBN13); isbn != "" {
			keys = append(keys, "isbn:"+isbn)
		}
	}
	if b.ISBN10 != "" {
		if isbn := isbn10To13(normalizeISBN(b.ISBN10)); isbn != "" && !slices.Contains(keys, "isbn:"+isbn) {
			keys = append(keys, "isbn:"+isbn)
		}
	}
	if len(keys) == 0 || len(b.Authors) > 0 {
		if title := titleKey(b); title != "|" {
			keys = append(keys, title)
		}
	}
	if len(keys) == 0 {
		keys = append(keys, "id:"+b.ID)
	}
	return keys
}

func titleKey(b book.Book) string {
	authors := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		if key := textutil.NormalizeKey(a); key != "" {
			authors = append(authors, key)
		}
	}
	slices.Sort(authors)
	return textutil.NormalizeKey(b.Title) + "|" + strings.Join(authors, ",")
}

func canonicalISBN(b book.Book) string {
	if isbn := normalizeISBN(b.ISBN13); len(isbn) == 13 {
		return isbn
	}
	return isbn10To13(normalizeISBN(b.ISBN10))
}

func normalizeISBN(raw string) string {
	var builder strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= '0' && r <= '9') || r == 'X' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// isbn10To13 converts a 10-digit ISBN into its 978-prefixed ISBN-13. Any
// other input is returned unchanged so it still keys consistently.
func isbn10To13(isbn string) string {
	if len(isbn) != 10 {
		return isbn
	}
	core := "978" + isbn[:9]
	sum := 0
	for i, r := range core {
		if r < '0' || r > '9' {
			return isbn
		}
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	check := (10 - sum%10) % 10
	return core + string(rune('0'+check))
}

// Dedup drops every record that shares a key with an earlier one, keeping
// input order. Keys of dropped records count as seen too, so a chain of
// duplicates collapses onto its first member. Use it when order carries
// meaning and must not be re-ranked.
func Dedup(books []book.Book) []book.Book {
	out := make([]book.Book, 0, len(books))
	seen := make(map[string]struct{}, len(books)*2)
	for _, b := range books {
		keys := Keys(b)
		dup := slices.ContainsFunc(keys, func(k string) bool {
			_, ok := seen[k]
			return ok
		})
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}
