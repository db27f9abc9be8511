package model

import (
	"time"
)

// PropertyType is the canonical property classification shared by all sources.
type PropertyType string

const (
	PropertyTypeHouse   PropertyType = "house"
	PropertyTypeFlat    PropertyType = "flat"
	PropertyTypeStudio  PropertyType = "studio"
	PropertyTypeUnknown PropertyType = "unknown"
)

// FurnishedStatus describes the furnishing state of a listing, when known.
type FurnishedStatus string

const (
	FurnishedUnknown FurnishedStatus = ""
	Furnished        FurnishedStatus = "furnished"
	Unfurnished      FurnishedStatus = "unfurnished"
	PartFurnished    FurnishedStatus = "part_furnished"
)

// RawListing is a source-native payload exactly as fetched, before any
// normalization. Immutable once produced by a fetch.
type RawListing struct {
	Source     string         `json:"source"`
	SourceID   string         `json:"source_id"`
	RawPayload map[string]any `json:"raw_payload"`
	FetchedAt  time.Time      `json:"fetched_at"`
	URL        string         `json:"url,omitempty"`
}

// Lineage is the provenance metadata attached to every normalized listing.
// ReliabilityScore is the adapter's trust score in [0,1]; it is distinct
// from the validator's batch score and the dedupe ranking score.
type Lineage struct {
	Source           string    `json:"source"`
	SourceID         string    `json:"source_id"`
	FetchedAt        time.Time `json:"fetched_at"`
	ReliabilityScore float64   `json:"reliability_score"`
}

// NormalizedListing is the canonical property record produced
// deterministically from one RawListing.
//
// Numeric optionals are *float64: nil means the source did not provide the
// field, NaN means the source provided a value that could not be parsed as
// a number. Validation treats the two cases differently.
type NormalizedListing struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Price        *float64        `json:"price,omitempty"`
	Bedrooms     *float64        `json:"bedrooms,omitempty"`
	Bathrooms    *float64        `json:"bathrooms,omitempty"`
	PropertyType PropertyType    `json:"property_type"`
	Address      string          `json:"address"`
	Postcode     string          `json:"postcode,omitempty"`
	City         string          `json:"city,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	FloorArea    *float64        `json:"floor_area,omitempty"`
	Garden       bool            `json:"garden"`
	Parking      bool            `json:"parking"`
	Furnished    FurnishedStatus `json:"furnished,omitempty"`
	ListingURL   string          `json:"listing_url,omitempty"`
	ImageURLs    []string        `json:"image_urls,omitempty"`
	LastUpdated  *time.Time      `json:"last_updated,omitempty"`
	Lineage      Lineage         `json:"lineage"`
}

// Key returns the natural identity of a listing: source-qualified so that
// ids from different sources never collide.
func (l *NormalizedListing) Key() string {
	return l.Lineage.Source + ":" + l.Lineage.SourceID
}

// HasCoordinates reports whether both coordinates are present and numeric.
func (l *NormalizedListing) HasCoordinates() bool {
	return isNumber(l.Latitude) && isNumber(l.Longitude)
}

func isNumber(v *float64) bool {
	return v != nil && *v == *v // NaN != NaN
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to t, for building optional timestamps.
func Time(t time.Time) *time.Time { return &t }
