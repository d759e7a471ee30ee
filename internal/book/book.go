package book

import (
	"fmt"
	"strings"
)

// Source identifies the catalog a Book was normalized from.
type Source string

const (
	SourceGoogle      Source = "google"
	SourceOpenLibrary Source = "openlibrary"
)

// Valid reports whether s names a known catalog.
func (s Source) Valid() bool {
	return s == SourceGoogle || s == SourceOpenLibrary
}

// Other returns the opposite catalog.
func (s Source) Other() Source {
	if s == SourceGoogle {
		return SourceOpenLibrary
	}
	return SourceGoogle
}

// ParseSource maps user input ("google", "google_books", "openlibrary", ...) to a Source.
func ParseSource(value string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "google", "google_books", "googlebooks", "google-books":
		return SourceGoogle, true
	case "openlibrary", "open_library", "open-library", "ol":
		return SourceOpenLibrary, true
	default:
		return "", false
	}
}

// Covers holds the size variants of a cover image. Empty fields are absent.
type Covers struct {
	Thumbnail  string `json:"thumbnail,omitempty"`
	Small      string `json:"small,omitempty"`
	Medium     string `json:"medium,omitempty"`
	Large      string `json:"large,omitempty"`
	ExtraLarge string `json:"extraLarge,omitempty"`
}

// Any reports whether at least one cover variant is present.
func (c Covers) Any() bool {
	return c.Thumbnail != "" || c.Small != "" || c.Medium != "" || c.Large != "" || c.ExtraLarge != ""
}

// Best returns the largest available variant.
func (c Covers) Best() string {
	for _, candidate := range []string{c.ExtraLarge, c.Large, c.Medium, c.Small, c.Thumbnail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Book is the canonical record produced by every catalog adapter.
type Book struct {
	ID            string   `json:"id"`
	Source        Source   `json:"source"`
	OriginalID    string   `json:"originalId"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Language      string   `json:"language,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	Covers        Covers   `json:"covers"`
	AverageRating float64  `json:"averageRating,omitempty"`
	RatingsCount  int      `json:"ratingsCount,omitempty"`
	InfoLink      string   `json:"infoLink,omitempty"`
}

// ComposeID builds the globally unique identifier for a source-native id.
func ComposeID(source Source, originalID string) string {
	return fmt.Sprintf("%s-%s", source, originalID)
}

// SplitID recovers the source and native id from a composed identifier.
func SplitID(id string) (Source, string, bool) {
	id = strings.TrimSpace(id)
	for _, source := range []Source{SourceGoogle, SourceOpenLibrary} {
		prefix := string(source) + "-"
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return source, id[len(prefix):], true
		}
	}
	return "", "", false
}

// HasISBN reports whether either ISBN form is present.
func (b Book) HasISBN() bool {
	return b.ISBN13 != "" || b.ISBN10 != ""
}

// PreferredISBN returns ISBN-13 when present, otherwise ISBN-10.
func (b Book) PreferredISBN() string {
	if b.ISBN13 != "" {
		return b.ISBN13
	}
	return b.ISBN10
}

// PublishedYear extracts the leading four-digit year of PublishedDate, or 0.
func (b Book) PublishedYear() int {
	date := strings.TrimSpace(b.PublishedDate)
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

// New validates the minimum invariants of a normalized record. Records without
// a title are rejected; a nil author list becomes empty.
func New(b Book) (Book, bool) {
	b.Title = strings.TrimSpace(b.Title)
	b.OriginalID = strings.TrimSpace(b.OriginalID)
	if b.Title == "" || b.OriginalID == "" || !b.Source.Valid() {
		return Book{}, false
	}
	b.ID = ComposeID(b.Source, b.OriginalID)
	if b.Authors == nil {
		b.Authors = []string{}
	}
	return b, true
}
