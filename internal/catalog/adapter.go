package catalog

import (
	"context"

	"bookscout/internal/book"
)

// RateLimitInfo describes the quota posture of an adapter.
type RateLimitInfo struct {
	HasKey            bool    `json:"hasKey"`
	Unlimited         bool    `json:"unlimited"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

// Adapter is implemented by each external catalog.
type Adapter interface {
	Source() book.Source
	// SearchBooks clamps params to MaxResultsCap before calling upstream.
	SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error)
	// GetDetails returns nil, nil when the catalog has no such record.
	GetDetails(ctx context.Context, originalID string) (*book.Book, error)
	IsConfigured() bool
	RateLimitInfo() RateLimitInfo
	MaxResultsCap() int
}
