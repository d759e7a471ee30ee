package googlebooks

import (
	"strings"

	"bookscout/internal/book"
	"bookscout/internal/catalog"
)

type volumesResponse struct {
	TotalItems *int     `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string       `json:"title"`
	Subtitle            string       `json:"subtitle"`
	Authors             []string     `json:"authors"`
	Publisher           string       `json:"publisher"`
	PublishedDate       string       `json:"publishedDate"`
	Description         string       `json:"description"`
	IndustryIdentifiers []identifier `json:"industryIdentifiers"`
	PageCount           int          `json:"pageCount"`
	Categories          []string     `json:"categories"`
	AverageRating       float64      `json:"averageRating"`
	RatingsCount        int          `json:"ratingsCount"`
	Language            string       `json:"language"`
	InfoLink            string       `json:"infoLink"`
	ImageLinks          imageLinks   `json:"imageLinks"`
}

type identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

func normalizeVolume(v volume) (book.Book, bool) {
	info := v.VolumeInfo
	b := book.Book{
		Source:        book.SourceGoogle,
		OriginalID:    v.ID,
		Title:         info.Title,
		Subtitle:      strings.TrimSpace(info.Subtitle),
		Authors:       catalog.CapList(info.Authors, 0),
		Description:   catalog.StripHTML(info.Description),
		PublishedDate: strings.TrimSpace(info.PublishedDate),
		Publisher:     strings.TrimSpace(info.Publisher),
		PageCount:     info.PageCount,
		Categories:    catalog.CapList(info.Categories, maxCategories),
		Language:      strings.TrimSpace(info.Language),
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		InfoLink:      catalog.SecureURL(info.InfoLink),
		Covers:        normalizeCovers(info.ImageLinks),
	}
	for _, id := range info.IndustryIdentifiers {
		value := strings.TrimSpace(id.Identifier)
		switch id.Type {
		case "ISBN_13":
			b.ISBN13 = value
		case "ISBN_10":
			b.ISBN10 = value
		}
	}
	return book.New(b)
}

func normalizeCovers(links imageLinks) book.Covers {
	thumb := links.Thumbnail
	if thumb == "" {
		thumb = links.SmallThumbnail
	}
	small := links.Small
	if small == "" {
		small = links.SmallThumbnail
	}
	return book.Covers{
		Thumbnail:  catalog.SecureURL(thumb),
		Small:      catalog.SecureURL(small),
		Medium:     catalog.SecureURL(links.Medium),
		Large:      catalog.SecureURL(links.Large),
		ExtraLarge: catalog.SecureURL(links.ExtraLarge),
	}
}
