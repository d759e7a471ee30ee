package openlibrary

import (
	"encoding/json"
	"strconv"
	"strings"

	"bookscout/internal/book"
	"bookscout/internal/catalog"
	"bookscout/internal/language"
)

type searchResponse struct {
	NumFound *int        `json:"numFound"`
	Start    int         `json:"start"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	Pages            int      `json:"number_of_pages_median"`
	ISBN             []string `json:"isbn"`
	Subject          []string `json:"subject"`
	Language         []string `json:"language"`
	CoverID          int      `json:"cover_i"`
	RatingsAverage   float64  `json:"ratings_average"`
	RatingsCount     int      `json:"ratings_count"`
}

type work struct {
	Key              string      `json:"key"`
	Title            string      `json:"title"`
	Subtitle         string      `json:"subtitle"`
	Description      textValue   `json:"description"`
	Covers           []int       `json:"covers"`
	Subjects         []string    `json:"subjects"`
	FirstPublishDate string      `json:"first_publish_date"`
	Authors          []authorRef `json:"authors"`
}

type authorRef struct {
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

type author struct {
	Name string `json:"name"`
}

// textValue accepts both forms Open Library uses for prose fields: a bare
// string or {"type": "/type/text", "value": "..."}.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = textValue(plain)
		return nil
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	*t = textValue(typed.Value)
	return nil
}

func (c *Client) normalizeDoc(doc searchDoc) (book.Book, bool) {
	id := workID(doc.Key)
	b := book.Book{
		Source:        book.SourceOpenLibrary,
		OriginalID:    id,
		Title:         doc.Title,
		Subtitle:      strings.TrimSpace(doc.Subtitle),
		Authors:       catalog.CapList(doc.AuthorName, 0),
		PageCount:     doc.Pages,
		Categories:    catalog.CapList(doc.Subject, maxCategories),
		AverageRating: doc.RatingsAverage,
		RatingsCount:  doc.RatingsCount,
		Covers:        c.coverURLs(doc.CoverID),
		InfoLink:      c.infoLink(id),
	}
	if doc.FirstPublishYear > 0 {
		b.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
	}
	if len(doc.Publisher) > 0 {
		b.Publisher = strings.TrimSpace(doc.Publisher[0])
	}
	if len(doc.Language) > 0 {
		b.Language = normalizeLanguage(doc.Language[0])
	}
	b.ISBN10, b.ISBN13 = pickISBNs(doc.ISBN)
	return book.New(b)
}

func (c *Client) normalizeWork(id string, w work, authors []string) (book.Book, bool) {
	b := book.Book{
		Source:        book.SourceOpenLibrary,
		OriginalID:    id,
		Title:         w.Title,
		Subtitle:      strings.TrimSpace(w.Subtitle),
		Authors:       authors,
		Description:   catalog.StripHTML(string(w.Description)),
		PublishedDate: strings.TrimSpace(w.FirstPublishDate),
		Categories:    catalog.CapList(w.Subjects, maxCategories),
		InfoLink:      c.infoLink(id),
	}
	for _, cover := range w.Covers {
		if cover > 0 {
			b.Covers = c.coverURLs(cover)
			break
		}
	}
	return book.New(b)
}

// coverURLs expands a numeric cover id into the covers host size variants.
// The host serves S, M and L; thumbnail and small share S, large and
// extra-large share L.
func (c *Client) coverURLs(id int) book.Covers {
	if id <= 0 {
		return book.Covers{}
	}
	base := c.coversURL + "/b/id/" + strconv.Itoa(id)
	return book.Covers{
		Thumbnail:  base + "-S.jpg",
		Small:      base + "-S.jpg",
		Medium:     base + "-M.jpg",
		Large:      base + "-L.jpg",
		ExtraLarge: base + "-L.jpg",
	}
}

func (c *Client) infoLink(id string) string {
	if id == "" {
		return ""
	}
	return catalog.SecureURL(c.transport.BaseURL()) + "/works/" + id
}

func workID(key string) string {
	key = strings.TrimSpace(key)
	return strings.TrimPrefix(key, "/works/")
}

// pickISBNs returns the first valid-length ISBN-10 and ISBN-13 in values.
func pickISBNs(values []string) (isbn10, isbn13 string) {
	for _, raw := range values {
		value := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
		switch len(value) {
		case 10:
			if isbn10 == "" {
				isbn10 = value
			}
		case 13:
			if isbn13 == "" {
				isbn13 = value
			}
		}
		if isbn10 != "" && isbn13 != "" {
			break
		}
	}
	return isbn10, isbn13
}

// normalizeLanguage maps MARC codes ("eng", "fre") to ISO 639-1 so records
// from both catalogs report languages the same way.
func normalizeLanguage(code string) string {
	if iso2 := language.ToISO2(code); iso2 != "" {
		return iso2
	}
	return strings.ToLower(strings.TrimSpace(code))
}
