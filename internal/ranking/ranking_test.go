package ranking

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"bookscout/internal/book"
)

func mustBook(t testing.TB, b book.Book) book.Book {
	t.Helper()
	out, ok := book.New(b)
	if !ok {
		t.Fatalf("invalid fixture %+v", b)
	}
	return out
}

func TestScoreUsesWeightTable(t *testing.T) {
	e := New(DefaultWeights())
	full := book.Book{
		Description:   strings.Repeat("x", 100),
		Covers:        book.Covers{Thumbnail: "https://example.org/t.jpg"},
		PublishedDate: "2008",
		Publisher:     "Pearson",
		PageCount:     431,
		ISBN13:        "9780132350884",
		Categories:    []string{"Computers"},
		AverageRating: 4.5,
	}
	if got := e.Score(full); got != 13 {
		t.Fatalf("full record score = %d, want 13", got)
	}
	short := full
	short.Description = "too short"
	if got := e.Score(short); got != 10 {
		t.Fatalf("short description score = %d, want 10", got)
	}
	if got := e.Score(book.Book{}); got != 0 {
		t.Fatalf("empty record score = %d, want 0", got)
	}

	custom := New(Weights{Cover: 10})
	if got := custom.Score(full); got != 10 {
		t.Fatalf("custom weights score = %d, want 10", got)
	}
}

func TestMergeAndRankCleanCode(t *testing.T) {
	google := []book.Book{
		mustBook(t, book.Book{
			Source: book.SourceGoogle, OriginalID: "hjEFCAAAQBAJ", Title: "Clean Code",
			Authors: []string{"Robert C. Martin"}, ISBN13: "9780132350884", Publisher: "Pearson",
			Covers: book.Covers{Thumbnail: "https://books.google.com/t"},
		}),
		mustBook(t, book.Book{
			Source: book.SourceGoogle, OriginalID: "abc", Title: "The Clean Coder",
			Authors: []string{"Robert C. Martin"}, ISBN13: "9780137081073",
		}),
	}
	openLibrary := []book.Book{
		mustBook(t, book.Book{
			Source: book.SourceOpenLibrary, OriginalID: "OL17618370W", Title: "Clean code",
			Authors: []string{"Robert C. Martin"}, ISBN10: "0132350882", PublishedDate: "2008",
		}),
		mustBook(t, book.Book{
			Source: book.SourceOpenLibrary, OriginalID: "OL2W", Title: "Clean Code",
			Authors: []string{"Robert C. Martin"}, ISBN13: "9789332519244",
		}),
	}

	merged := New(DefaultWeights()).MergeAndRank(google, openLibrary)
	cleanCode := 0
	for _, b := range merged {
		if strings.EqualFold(b.Title, "clean code") {
			cleanCode++
		}
	}
	if cleanCode != 1 {
		t.Fatalf("expected exactly one Clean Code, got %d in %+v", cleanCode, merged)
	}
	if len(merged) != 2 {
		t.Fatalf("expected Clean Code and The Clean Coder, got %+v", merged)
	}
	if merged[0].ID != "google-hjEFCAAAQBAJ" {
		t.Fatalf("expected richest record first, got %s", merged[0].ID)
	}
}

func TestMergeAndRankPrefersGoogleOnTies(t *testing.T) {
	ol := mustBook(t, book.Book{Source: book.SourceOpenLibrary, OriginalID: "OL1W", Title: "Dune", Authors: []string{"Frank Herbert"}})
	g := mustBook(t, book.Book{Source: book.SourceGoogle, OriginalID: "g1", Title: "Dune", Authors: []string{"Frank Herbert"}})
	merged := New(DefaultWeights()).MergeAndRank([]book.Book{ol}, []book.Book{g})
	if len(merged) != 1 || merged[0].Source != book.SourceGoogle {
		t.Fatalf("expected Google record to win tie, got %+v", merged)
	}
}

func TestMergeAndRankEmpty(t *testing.T) {
	merged := New(DefaultWeights()).MergeAndRank()
	if merged == nil || len(merged) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", merged)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   book.Book
		want string
	}{
		{"isbn13", book.Book{ISBN13: "978-0-13-235088-4"}, "isbn:9780132350884"},
		{"isbn10 converted", book.Book{ISBN10: "0-13-235088-2"}, "isbn:9780132350884"},
		{"title and sorted authors", book.Book{Title: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"}}, "good omens|neil gaiman,terry pratchett"},
		{"diacritics folded", book.Book{Title: "Cien años de soledad", Authors: []string{"Gabriel García Márquez"}}, "cien anos de soledad|gabriel garcia marquez"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.in); got != tt.want {
				t.Fatalf("Key = %q, want %q", got, tt.want)
			}
		})
	}
}

var (
	titles  = []string{"Dune", "dune", "Dune (Deluxe Edition)", "Clean Code", "Solaris", "Emma"}
	authors = []string{"Frank Herbert", "Robert C. Martin", "Stanisław Lem", "Jane Austen"}
	isbns   = []string{"", "", "9780441172719", "9780132350884", "0132350882"}
)

func bookGen() *rapid.Generator[book.Book] {
	return rapid.Custom(func(t *rapid.T) book.Book {
		source := book.SourceGoogle
		if rapid.Bool().Draw(t, "openlibrary") {
			source = book.SourceOpenLibrary
		}
		b := book.Book{
			Source:     source,
			OriginalID: rapid.StringMatching(`[A-Za-z0-9]{1,8}`).Draw(t, "id"),
			Title:      rapid.SampledFrom(titles).Draw(t, "title"),
			Authors:    rapid.SliceOfN(rapid.SampledFrom(authors), 0, 1).Draw(t, "authors"),
			PageCount:  rapid.IntRange(0, 3).Draw(t, "pages"),
			Publisher:  rapid.SampledFrom([]string{"", "Ace"}).Draw(t, "publisher"),
		}
		isbn := rapid.SampledFrom(isbns).Draw(t, "isbn")
		if len(isbn) == 10 {
			b.ISBN10 = isbn
		} else {
			b.ISBN13 = isbn
		}
		if rapid.Bool().Draw(t, "rated") {
			b.AverageRating = 4
		}
		out, _ := book.New(b)
		return out
	})
}

func TestMergeAndRankProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := New(DefaultWeights())
		a := rapid.SliceOfN(bookGen(), 0, 12).Draw(t, "a")
		b := rapid.SliceOfN(bookGen(), 0, 12).Draw(t, "b")
		for i := range a {
			a[i].ID = fmt.Sprintf("a%d-%s", i, a[i].ID)
		}
		for i := range b {
			b[i].ID = fmt.Sprintf("b%d-%s", i, b[i].ID)
		}
		merged := e.MergeAndRank(a, b)

		if len(merged) > len(a)+len(b) {
			t.Fatalf("merged %d records from %d inputs", len(merged), len(a)+len(b))
		}
		seen := map[string]bool{}
		for i, m := range merged {
			for _, key := range Keys(m) {
				if seen[key] {
					t.Fatalf("duplicate key %q in output", key)
				}
				seen[key] = true
			}
			if i > 0 && e.Score(merged[i-1]) < e.Score(m) {
				t.Fatalf("output not sorted by score at %d", i)
			}
		}

		inputs := append(append([]book.Book{}, a...), b...)

		// A kept record outranks every input it shares a key with, so the
		// best-scored edition of an ISBN is the one that survives.
		for _, m := range merged {
			for _, in := range inputs {
				if sharesKey(in, m) && e.Score(in) > e.Score(m) {
					t.Fatalf("kept %s (score %d) over higher-scored duplicate %s (score %d)", m.ID, e.Score(m), in.ID, e.Score(in))
				}
			}
		}

		// Every dropped input lost to another input sharing a key with an
		// equal or higher score.
		kept := map[string]bool{}
		for _, m := range merged {
			kept[m.ID] = true
		}
		for i, in := range inputs {
			if kept[in.ID] {
				continue
			}
			beaten := false
			for j, other := range inputs {
				if i != j && sharesKey(in, other) && e.Score(other) >= e.Score(in) {
					beaten = true
					break
				}
			}
			if !beaten {
				t.Fatalf("input %+v dropped without a better duplicate", in)
			}
		}

		again := e.MergeAndRank(a, b)
		for i := range merged {
			if merged[i].ID != again[i].ID {
				t.Fatalf("non-deterministic output at %d", i)
			}
		}
	})
}

func sharesKey(a, b book.Book) bool {
	for _, ka := range Keys(a) {
		for _, kb := range Keys(b) {
			if ka == kb {
				return true
			}
		}
	}
	return false
}

func TestDedupKeepsOrder(t *testing.T) {
	a := mustBook(t, book.Book{Source: book.SourceOpenLibrary, OriginalID: "1", Title: "Solaris", Authors: []string{"Stanislaw Lem"}})
	b := mustBook(t, book.Book{Source: book.SourceGoogle, OriginalID: "2", Title: "Dune", Authors: []string{"Frank Herbert"}, ISBN13: "9780441172719"})
	c := mustBook(t, book.Book{Source: book.SourceGoogle, OriginalID: "3", Title: "solaris", Authors: []string{"Stanislaw Lem"}, ISBN13: "9780156027601"})
	got := Dedup([]book.Book{a, b, c})
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("unexpected dedup result %+v", got)
	}
}

func TestMergeAndRankKeepsBestEditionAcrossTitleChain(t *testing.T) {
	best := mustBook(t, book.Book{
		Source: book.SourceGoogle, OriginalID: "a", Title: "Dune", Authors: []string{"Frank Herbert"},
		ISBN13: "9780441172719", Publisher: "Ace", PageCount: 604, AverageRating: 4.3, PublishedDate: "1990",
	})
	reprint := mustBook(t, book.Book{
		Source: book.SourceGoogle, OriginalID: "b", Title: "Dune", Authors: []string{"Frank Herbert"},
		ISBN13: "9780441013593", Publisher: "Ace", PublishedDate: "2005",
	})
	deluxe := mustBook(t, book.Book{
		Source: book.SourceOpenLibrary, OriginalID: "c", Title: "Dune (Deluxe Edition)", ISBN13: "9780441013593",
	})

	e := New(DefaultWeights())
	if e.Score(best) != 7 || e.Score(reprint) != 4 || e.Score(deluxe) != 2 {
		t.Fatalf("unexpected fixture scores %d/%d/%d", e.Score(best), e.Score(reprint), e.Score(deluxe))
	}
	merged := e.MergeAndRank([]book.Book{best, reprint}, []book.Book{deluxe})
	if len(merged) != 1 || merged[0].ID != best.ID {
		t.Fatalf("expected only %s to survive, got %+v", best.ID, merged)
	}
}
