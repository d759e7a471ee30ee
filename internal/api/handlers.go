package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookscout/internal/book"
	"bookscout/internal/logging"
	"bookscout/internal/search"
	"bookscout/internal/services"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the payload written for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// DiscoverRequest is the body accepted by POST /api/discover.
type DiscoverRequest struct {
	Prompt          string `json:"prompt"`
	MaxResults      int    `json:"maxResults,omitempty"`
	StartIndex      int    `json:"startIndex,omitempty"`
	Language        string `json:"language,omitempty"`
	PublishedAfter  int    `json:"publishedAfter,omitempty"`
	PublishedBefore int    `json:"publishedBefore,omitempty"`
}

// StatusResponse is served by GET /api/status.
type StatusResponse struct {
	Search    search.Status `json:"search"`
	Discovery bool          `json:"discovery"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	results, err := s.searcher.SearchBooks(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var source book.Source
	if raw := r.URL.Query().Get("source"); raw != "" {
		parsed, ok := book.ParseSource(raw)
		if !ok {
			s.writeServiceError(w, r, services.Wrap(services.ErrInvalidQuery, "api", "details", fmt.Sprintf("unknown source %q", raw), nil))
			return
		}
		source = parsed
	}
	record, err := s.searcher.GetBookDetails(r.Context(), id, source)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("book %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if s.discoverer == nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrServiceUnavailable, "api", "discover", "discovery not configured", nil))
		return
	}
	var req DiscoverRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrInvalidQuery, "api", "discover", "malformed request body", err))
		return
	}
	params := book.SearchParams{
		MaxResults:      req.MaxResults,
		StartIndex:      req.StartIndex,
		Language:        req.Language,
		PublishedAfter:  req.PublishedAfter,
		PublishedBefore: req.PublishedBefore,
	}
	result, err := s.discoverer.Discover(r.Context(), req.Prompt, params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := StatusResponse{
		Search:    s.searcher.Status(),
		Discovery: s.discoverer != nil && s.discoverer.Available(),
	}
	writeJSON(w, http.StatusOK, payload)
}

// ParseSearchParams reads search parameters from query values. Only malformed
// numbers are rejected here; semantic validation is left to the service.
func ParseSearchParams(values url.Values) (book.SearchParams, error) {
	params := book.SearchParams{
		Query:       values.Get("q"),
		AuthorQuery: values.Get("author"),
		SearchIn:    book.ParseScope(values.Get("search_in")),
		Language:    values.Get("language"),
	}
	ints := []struct {
		name   string
		target *int
	}{
		{"max_results", &params.MaxResults},
		{"start_index", &params.StartIndex},
		{"published_after", &params.PublishedAfter},
		{"published_before", &params.PublishedBefore},
	}
	for _, field := range ints {
		raw := strings.TrimSpace(values.Get(field.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return book.SearchParams{}, services.Wrap(services.ErrInvalidQuery, "api", "search", fmt.Sprintf("%s must be an integer", field.name), nil)
		}
		*field.target = n
	}
	return params, nil
}

// StatusForError maps an error marker to an HTTP status code.
func StatusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrNetwork), errors.Is(err, services.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrNoServiceAvailable),
		errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	logger := logging.WithContext(r.Context(), s.log())
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logger, "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Kind:      services.Kind(err),
		Retryable: services.Retryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
