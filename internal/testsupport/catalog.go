package testsupport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// CatalogServer is an httptest server answering fixed JSON bodies by path.
// Unknown paths answer 404.
type CatalogServer struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	calls  map[string]int
}

// NewCatalogServer starts a server serving routes (path -> JSON body) and
// closes it when the test ends.
func NewCatalogServer(t testing.TB, routes map[string]string) *CatalogServer {
	t.Helper()
	s := &CatalogServer{
		routes: make(map[string]string, len(routes)),
		status: make(map[string]int),
		calls:  make(map[string]int),
	}
	for path, body := range routes {
		s.routes[path] = body
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// FailWith makes path answer status with an empty JSON object.
func (s *CatalogServer) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = status
}

// Calls reports how many requests hit path. An empty path counts every request.
func (s *CatalogServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path != "" {
		return s.calls[path]
	}
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *CatalogServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	body, ok := s.routes[r.URL.Path]
	status, failing := s.status[r.URL.Path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case failing:
		w.WriteHeader(status)
		fmt.Fprint(w, "{}")
	case ok:
		fmt.Fprint(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"not found"}`)
	}
}

// GoogleVolumes is a one-result Google Books search response for Dune.
const GoogleVolumes = `{
  "totalItems": 1,
  "items": [{
    "id": "g1",
    "volumeInfo": {
      "title": "Dune",
      "authors": ["Frank Herbert"],
      "publishedDate": "1965-08-01",
      "description": "A desert planet and the spice that binds an empire, told across three generations of the Atreides family.",
      "industryIdentifiers": [{"type": "ISBN_13", "identifier": "9780441013593"}],
      "pageCount": 612
    }
  }]
}`

// OpenLibrarySearch is a one-result Open Library search response for Dune
// sharing the Google record's ISBN.
const OpenLibrarySearch = `{
  "numFound": 1,
  "docs": [{
    "key": "/works/OL893415W",
    "title": "Dune",
    "author_name": ["Frank Herbert"],
    "first_publish_year": 1965,
    "isbn": ["9780441013593"]
  }]
}`
