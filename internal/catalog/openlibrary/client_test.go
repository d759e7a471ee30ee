package openlibrary_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"bookscout/internal/book"
	"bookscout/internal/catalog/openlibrary"
	"bookscout/internal/config"
	"bookscout/internal/services"
)

const dunePayload = `{
  "numFound": 1024,
  "start": 0,
  "docs": [
    {
      "key": "/works/OL893415W",
      "title": "Dune",
      "author_name": ["Frank Herbert"],
      "first_publish_year": 1965,
      "publisher": ["Chilton Books", "Ace"],
      "number_of_pages_median": 612,
      "isbn": ["0441172717", "978-0441172719", "9780340960196"],
      "subject": ["Science fiction", "Dune (Imaginary place)", "Fiction", "Deserts", "Ecology", "Politics"],
      "language": ["eng", "fre"],
      "cover_i": 11481354,
      "ratings_average": 4.2,
      "ratings_count": 512
    },
    {"key": "/works/OL1W", "title": "   "}
  ]
}`

func newClient(t *testing.T, handler http.HandlerFunc) *openlibrary.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return openlibrary.New(config.OpenLibrary{
		Catalog: config.Catalog{
			Enabled:          true,
			BaseURL:          srv.URL,
			MaxRetries:       1,
			RetryBaseDelayMS: 1,
			TimeoutSeconds:   5,
		},
		CoversURL: "https://covers.example.org",
	})
}

func TestSearchBooksNormalizesDocs(t *testing.T) {
	var got url.Values
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		got = r.URL.Query()
		_, _ = w.Write([]byte(dunePayload))
	})

	results, err := client.SearchBooks(context.Background(), book.SearchParams{
		Query:      "dune",
		MaxResults: 250,
		StartIndex: 20,
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("SearchBooks returned error: %v", err)
	}
	if got.Get("q") != "dune" || got.Get("limit") != "100" || got.Get("offset") != "20" || got.Get("language") != "eng" {
		t.Fatalf("unexpected query %v", got)
	}
	if results.Source != book.ResultOpenLibrary || results.TotalItems != 1024 || !results.HasMore {
		t.Fatalf("unexpected envelope %+v", results)
	}
	if len(results.Books) != 1 {
		t.Fatalf("expected blank-titled doc to be dropped, got %d", len(results.Books))
	}
	b := results.Books[0]
	if b.ID != "openlibrary-OL893415W" || b.OriginalID != "OL893415W" {
		t.Fatalf("unexpected ids %q %q", b.ID, b.OriginalID)
	}
	if b.PublishedDate != "1965" || b.Publisher != "Chilton Books" || b.PageCount != 612 {
		t.Fatalf("unexpected metadata %+v", b)
	}
	if b.ISBN10 != "0441172717" || b.ISBN13 != "9780441172719" {
		t.Fatalf("unexpected isbns %q %q", b.ISBN10, b.ISBN13)
	}
	if len(b.Categories) != 5 {
		t.Fatalf("expected categories capped at 5, got %v", b.Categories)
	}
	if b.Language != "en" {
		t.Fatalf("expected MARC language mapped to en, got %q", b.Language)
	}
	want := book.Covers{
		Thumbnail:  "https://covers.example.org/b/id/11481354-S.jpg",
		Small:      "https://covers.example.org/b/id/11481354-S.jpg",
		Medium:     "https://covers.example.org/b/id/11481354-M.jpg",
		Large:      "https://covers.example.org/b/id/11481354-L.jpg",
		ExtraLarge: "https://covers.example.org/b/id/11481354-L.jpg",
	}
	if b.Covers != want {
		t.Fatalf("unexpected covers %+v", b.Covers)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name   string
		params book.SearchParams
		want   map[string]string
	}{
		{
			name:   "unscoped passes through",
			params: book.SearchParams{Query: "the left hand of darkness", SearchIn: book.ScopeAll},
			want:   map[string]string{"q": "the left hand of darkness"},
		},
		{
			name:   "title scope",
			params: book.SearchParams{Query: "dune", SearchIn: book.ScopeTitle, AuthorQuery: "herbert"},
			want:   map[string]string{"title": "dune", "author": "herbert", "q": ""},
		},
		{
			name:   "author scope",
			params: book.SearchParams{Query: "ursula le guin", SearchIn: book.ScopeAuthor},
			want:   map[string]string{"author": "ursula le guin"},
		},
		{
			name:   "year range",
			params: book.SearchParams{Query: "dune", SearchIn: book.ScopeAll, PublishedAfter: 1960},
			want:   map[string]string{"q": "dune first_publish_year:[1960 TO *]"},
		},
		{
			name:   "french uses bibliographic code",
			params: book.SearchParams{Query: "etranger", Language: "fr-FR"},
			want:   map[string]string{"language": "fre"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := openlibrary.BuildQuery(tt.params)
			for key, value := range tt.want {
				if got.Get(key) != value {
					t.Fatalf("%s = %q, want %q (query %v)", key, got.Get(key), value, got)
				}
			}
		})
	}
}

func TestSearchBooksRequiresNumFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"docs": []}`))
	})
	_, err := client.SearchBooks(context.Background(), book.SearchParams{Query: "dune"})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSearchBooksRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.SearchBooks(context.Background(), book.SearchParams{Query: "dune"})
	if !errors.Is(err, services.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d", calls.Load())
	}
}

func TestGetDetailsResolvesAuthors(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/works/OL893415W.json":
			_, _ = w.Write([]byte(`{
				"key": "/works/OL893415W",
				"title": "Dune",
				"description": {"type": "/type/text", "value": "Set on the desert planet <b>Arrakis</b>."},
				"covers": [-1, 11481354],
				"first_publish_date": "1965",
				"authors": [
					{"author": {"key": "/authors/OL79034A"}},
					{"author": {"key": "/authors/OL404A"}}
				]
			}`))
		case "/authors/OL79034A.json":
			_, _ = w.Write([]byte(`{"name": "Frank Herbert"}`))
		default:
			http.NotFound(w, r)
		}
	})

	got, err := client.GetDetails(context.Background(), "OL893415W")
	if err != nil {
		t.Fatalf("GetDetails returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a book")
	}
	if got.Description != "Set on the desert planet Arrakis." {
		t.Fatalf("unexpected description %q", got.Description)
	}
	if len(got.Authors) != 1 || got.Authors[0] != "Frank Herbert" {
		t.Fatalf("expected unresolvable author to be skipped, got %v", got.Authors)
	}
	if got.Covers.Medium != "https://covers.example.org/b/id/11481354-M.jpg" {
		t.Fatalf("unexpected cover %q", got.Covers.Medium)
	}
}

func TestGetDetailsPlainDescriptionAndMissingWork(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/works/OL2W.json" {
			_, _ = w.Write([]byte(`{"title": "Solaris", "description": "A plain string."}`))
			return
		}
		http.NotFound(w, r)
	})

	got, err := client.GetDetails(context.Background(), "/works/OL2W")
	if err != nil || got == nil || got.Description != "A plain string." {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}
	if len(got.Authors) != 0 || got.Authors == nil {
		t.Fatalf("expected empty author list, got %#v", got.Authors)
	}

	missing, err := client.GetDetails(context.Background(), "OL404W")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown work, got %+v, %v", missing, err)
	}
}

func TestRateLimitInfo(t *testing.T) {
	client := openlibrary.New(config.OpenLibrary{Catalog: config.Catalog{Enabled: true}})
	info := client.RateLimitInfo()
	if !info.Unlimited || info.HasKey {
		t.Fatalf("unexpected rate limit info %+v", info)
	}
	if client.MaxResultsCap() != 100 {
		t.Fatalf("unexpected cap %d", client.MaxResultsCap())
	}
}
