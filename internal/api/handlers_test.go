package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bookscout/internal/book"
	"bookscout/internal/discovery"
	"bookscout/internal/metrics"
	"bookscout/internal/search"
	"bookscout/internal/services"
)

type fakeSearcher struct {
	results    book.SearchResults
	err        error
	details    *book.Book
	detailsErr error

	gotParams book.SearchParams
	gotID     string
	gotSource book.Source
	gotReqID  string
}

func (f *fakeSearcher) SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error) {
	f.gotParams = params
	f.gotReqID, _ = services.RequestIDFromContext(ctx)
	return f.results, f.err
}

func (f *fakeSearcher) GetBookDetails(_ context.Context, id string, source book.Source) (*book.Book, error) {
	f.gotID = id
	f.gotSource = source
	return f.details, f.detailsErr
}

func (f *fakeSearcher) Status() search.Status {
	return search.Status{Configured: true, Strategy: search.Strategy{Kind: search.KindMerged}, CacheBackend: "memory"}
}

type fakeDiscoverer struct {
	available bool
	result    discovery.Result
	err       error
	gotPrompt string
	gotParams book.SearchParams
}

func (f *fakeDiscoverer) Available() bool { return f.available }

func (f *fakeDiscoverer) Discover(_ context.Context, prompt string, params book.SearchParams) (discovery.Result, error) {
	f.gotPrompt = prompt
	f.gotParams = params
	return f.result, f.err
}

func serve(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestSearchPassesQueryParameters(t *testing.T) {
	searcher := &fakeSearcher{results: book.SearchResults{
		Books:      []book.Book{{ID: "google-abc", Source: book.SourceGoogle, Title: "Dune"}},
		TotalItems: 1,
		Query:      "dune",
		Source:     book.ResultGoogle,
	}}
	srv := New("127.0.0.1:0", searcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=dune&author=herbert&max_results=5&start_index=10&search_in=title&language=en&published_after=1960&published_before=1970", nil)
	w := serve(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := book.SearchParams{
		Query:           "dune",
		AuthorQuery:     "herbert",
		MaxResults:      5,
		StartIndex:      10,
		SearchIn:        book.ScopeTitle,
		Language:        "en",
		PublishedAfter:  1960,
		PublishedBefore: 1970,
	}
	if searcher.gotParams != want {
		t.Fatalf("unexpected params: %+v", searcher.gotParams)
	}
	var resp book.SearchResults
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Books) != 1 || resp.Books[0].Title != "Dune" || resp.Source != book.ResultGoogle {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(w.Body.String(), `"totalItems":1`) {
		t.Fatalf("expected camelCase payload, got %s", w.Body.String())
	}
}

func TestSearchRejectsMalformedNumbers(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := New("127.0.0.1:0", searcher, nil)

	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?q=dune&max_results=lots", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "invalid_query" || !strings.Contains(resp.Error, "max_results") {
		t.Fatalf("unexpected error payload: %+v", resp)
	}
}

func TestErrorMarkersMapToStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"invalid", services.Wrap(services.ErrInvalidQuery, "search", "", "empty query", nil), http.StatusBadRequest, false},
		{"not found", services.Wrap(services.ErrNotFound, "google_books", "details", "", nil), http.StatusNotFound, false},
		{"rate limited", services.Wrap(services.ErrRateLimited, "google_books", "search", "status 429", nil), http.StatusTooManyRequests, false},
		{"no service", services.Wrap(services.ErrNoServiceAvailable, "search", "", "", nil), http.StatusServiceUnavailable, false},
		{"unavailable", services.Wrap(services.ErrServiceUnavailable, "open_library", "search", "status 503", nil), http.StatusServiceUnavailable, true},
		{"timeout", services.Wrap(services.ErrTimeout, "google_books", "search", "deadline", nil), http.StatusGatewayTimeout, true},
		{"network", services.Wrap(services.ErrNetwork, "google_books", "search", "reset", nil), http.StatusBadGateway, true},
		{"parse", services.Wrap(services.ErrParse, "open_library", "search", "bad json", nil), http.StatusBadGateway, false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := New("127.0.0.1:0", &fakeSearcher{err: tc.err}, nil)
			w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?q=dune", nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Kind != services.Kind(tc.err) {
				t.Fatalf("expected kind %q, got %q", services.Kind(tc.err), resp.Kind)
			}
			if resp.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, resp.Retryable)
			}
		})
	}
}

func TestBookDetails(t *testing.T) {
	searcher := &fakeSearcher{details: &book.Book{ID: "openlibrary-OL1W", Source: book.SourceOpenLibrary, Title: "Dune"}}
	srv := New("127.0.0.1:0", searcher, nil)

	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/openlibrary-OL1W", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if searcher.gotID != "openlibrary-OL1W" || searcher.gotSource != "" {
		t.Fatalf("unexpected lookup: id=%q source=%q", searcher.gotID, searcher.gotSource)
	}

	w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/OL1W?source=openlibrary", nil))
	if w.Code != http.StatusOK || searcher.gotSource != book.SourceOpenLibrary {
		t.Fatalf("expected explicit source, got %d %q", w.Code, searcher.gotSource)
	}

	w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/OL1W?source=amazon", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown source, got %d", w.Code)
	}
}

func TestBookDetailsMissingIsNotFound(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, nil)
	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/google-nothing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDiscover(t *testing.T) {
	disc := &fakeDiscoverer{available: true, result: discovery.Result{
		SearchResults: book.SearchResults{Books: []book.Book{{ID: "google-h", Title: "The Hobbit"}}, Source: book.ResultCombined},
		Mode:          discovery.ModeAI,
	}}
	srv := New("127.0.0.1:0", &fakeSearcher{}, disc)

	body := `{"prompt":"cozy fantasy with dragons","maxResults":4,"language":"en"}`
	w := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if disc.gotPrompt != "cozy fantasy with dragons" || disc.gotParams.MaxResults != 4 || disc.gotParams.Language != "en" {
		t.Fatalf("unexpected discover call: %q %+v", disc.gotPrompt, disc.gotParams)
	}
	var resp discovery.Result
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != discovery.ModeAI || len(resp.Books) != 1 {
		t.Fatalf("unexpected result: %+v", resp)
	}
}

func TestDiscoverRejectsBadBodies(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, &fakeDiscoverer{})

	for _, body := range []string{`{"prompt":`, `{"prompt":"x","unknown":true}`} {
		w := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}

	large := `{"prompt":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(large)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestDiscoverWithoutOrchestrator(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, nil)
	w := serve(t, srv, httptest.NewRequest(http.MethodPost, "/api/discover", strings.NewReader(`{"prompt":"x"}`)))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/discover", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", w.Code)
	}
}

func TestStatusAndHealth(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, &fakeDiscoverer{available: true})

	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Discovery || !resp.Search.Configured || resp.Search.CacheBackend != "memory" {
		t.Fatalf("unexpected status: %+v", resp)
	}

	w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestAuthTokenGuardsAPIRoutes(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, nil, WithToken("secret"))

	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w = serve(t, srv, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w = serve(t, srv, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}

	if w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", w.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := New("127.0.0.1:0", searcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=dune", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := serve(t, srv, req)
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if searcher.gotReqID != "req-42" {
		t.Fatalf("expected request id in context, got %q", searcher.gotReqID)
	}

	w = serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?q=dune", nil))
	if got := w.Header().Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestMetricsEndpointAndRouteCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)
	srv := New("127.0.0.1:0", &fakeSearcher{}, nil, WithMetrics(collectors), WithGatherer(reg))

	serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/google-1", nil))
	serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/google-2", nil))

	if got := testutil.ToFloat64(collectors.HTTPRequests.WithLabelValues("/api/books/{id}", "404")); got != 2 {
		t.Fatalf("expected 2 requests on route pattern, got %v", got)
	}

	w := serve(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bookscout_http_requests_total") {
		t.Fatalf("unexpected metrics response: %d", w.Code)
	}
}

func TestParseSearchParamsDefaults(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"q": {"dune"}})
	if err != nil {
		t.Fatalf("ParseSearchParams: %v", err)
	}
	if params.SearchIn != book.ScopeAll || params.MaxResults != 0 {
		t.Fatalf("unexpected defaults: %+v", params)
	}
}

func TestServerStartStop(t *testing.T) {
	srv := New("127.0.0.1:0", &fakeSearcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
