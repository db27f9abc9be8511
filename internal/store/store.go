// Package store persists normalized listings. Two backends exist:
// Postgres with PostGIS geometry for deployments, SQLite for local use.
package store

import (
	"context"

	"github.com/propfolio/catalog-cli/internal/model"
)

// ListingFilter narrows ListListings results. Zero values mean no filter.
type ListingFilter struct {
	Source   string  `json:"source,omitempty"`
	City     string  `json:"city,omitempty"`
	MinPrice float64 `json:"min_price,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// Store is the persistence interface for the ingestion pipeline.
//
// UpsertListing merges: for an existing (source, source_id) row, fields
// present on the incoming record overwrite, fields the source omitted
// keep their stored value. Booleans always take the incoming value.
type Store interface {
	UpsertListing(ctx context.Context, l *model.NormalizedListing) error
	GetListing(ctx context.Context, source, sourceID string) (*model.NormalizedListing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]model.NormalizedListing, error)
	CountListings(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
