package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/fetcher"
	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/resilience"
)

// BulkFeedAdapter ingests a daily CSV feed delivered over FTP. Unlike the
// portal adapters it has no per-listing endpoint; FetchDetails rescans the
// feed, so callers should prefer Search for batch work.
type BulkFeedAdapter struct {
	name    string
	feedURL string
	ftp     *fetcher.FTPFetcher
	now     func() time.Time
}

// NewBulkFeedAdapter creates a feed adapter for the given FTP URL. A nil
// fetcher gets default options.
func NewBulkFeedAdapter(name, feedURL string, ftp *fetcher.FTPFetcher) *BulkFeedAdapter {
	if name == "" {
		name = "bulkfeed"
	}
	if ftp == nil {
		ftp = fetcher.NewFTPFetcher(fetcher.FTPOptions{})
	}
	return &BulkFeedAdapter{
		name:    name,
		feedURL: feedURL,
		ftp:     ftp,
		now:     time.Now,
	}
}

func (a *BulkFeedAdapter) Source() string { return a.name }

// Search downloads the feed and returns rows matching the location. A
// blank location returns the whole feed. radiusKM is ignored; the feed
// carries no geometry index.
func (a *BulkFeedAdapter) Search(ctx context.Context, location string, radiusKM float64, maxResults int) ([]model.RawListing, error) {
	rows, err := a.fetchFeed(ctx)
	if err != nil {
		if recoverableSearchErr(err) {
			zap.L().Warn("bulk feed unavailable, returning no results",
				zap.String("source", a.name),
				zap.Error(err),
			)
			return []model.RawListing{}, nil
		}
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(location))
	var raws []model.RawListing
	for _, row := range rows {
		if needle != "" && !rowMatchesLocation(row, needle) {
			continue
		}
		raw, ok := a.rowToRaw(row)
		if !ok {
			continue
		}
		raws = append(raws, raw)
		if maxResults > 0 && len(raws) >= maxResults {
			break
		}
	}

	zap.L().Info("bulk feed search complete",
		zap.String("source", a.name),
		zap.Int("rows", len(rows)),
		zap.Int("matched", len(raws)),
	)
	return raws, nil
}

// FetchDetails scans the feed for one row by id.
func (a *BulkFeedAdapter) FetchDetails(ctx context.Context, sourceID string) (*model.RawListing, error) {
	rows, err := a.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["id"] == sourceID {
			if raw, ok := a.rowToRaw(row); ok {
				return &raw, nil
			}
		}
	}
	return nil, eris.Errorf("%s: listing %s not found in feed", a.name, sourceID)
}

// Normalize maps a feed row to the canonical record. Feed columns are
// flat strings; numeric parsing failures become NaN so validation can
// flag them rather than silently dropping the row.
func (a *BulkFeedAdapter) Normalize(raw *model.RawListing) (*model.NormalizedListing, error) {
	if raw == nil || raw.RawPayload == nil {
		return nil, eris.Errorf("%s: nil raw payload", a.name)
	}
	payload := raw.RawPayload

	address := payloadString(payload, "address")
	l := &model.NormalizedListing{
		Title:        firstNonEmpty(payloadString(payload, "title"), address),
		Description:  payloadString(payload, "description"),
		Price:        extractPrice(payload["price"]),
		Bedrooms:     extractCount(payload["bedrooms"]),
		Bathrooms:    extractCount(payload["bathrooms"]),
		PropertyType: feedPropertyType(payloadString(payload, "property_type")),
		Address:      address,
		Postcode:     firstNonEmpty(payloadString(payload, "postcode"), extractPostcode(address)),
		City:         payloadString(payload, "city"),
		Latitude:     payloadNumber(payload, "latitude"),
		Longitude:    payloadNumber(payload, "longitude"),
		FloorArea:    payloadNumber(payload, "floor_area"),
		Garden:       feedBool(payloadString(payload, "garden")),
		Parking:      feedBool(payloadString(payload, "parking")),
		Furnished:    furnishedFromText(payloadString(payload, "furnished")),
		ListingURL:   payloadString(payload, "url"),
		ImageURLs:    splitImageURLs(payloadString(payload, "image_urls")),
		LastUpdated:  feedTimestamp(payloadString(payload, "updated_at"), raw.FetchedAt),
	}

	l.Lineage = model.Lineage{
		Source:           raw.Source,
		SourceID:         raw.SourceID,
		FetchedAt:        raw.FetchedAt,
		ReliabilityScore: ReliabilityScore(l),
	}
	return l, nil
}

func (a *BulkFeedAdapter) fetchFeed(ctx context.Context) ([]map[string]string, error) {
	body, err := a.ftp.Download(ctx, a.feedURL)
	if err != nil {
		return nil, resilience.NewFetchError(a.name, a.feedURL, err)
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.ReadTable(ctx, body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse feed", a.name)
	}
	return rows, nil
}

func (a *BulkFeedAdapter) rowToRaw(row map[string]string) (model.RawListing, bool) {
	id := strings.TrimSpace(row["id"])
	if id == "" {
		return model.RawListing{}, false
	}

	payload := make(map[string]any, len(row))
	for k, v := range row {
		payload[k] = v
	}
	return model.RawListing{
		Source:     a.name,
		SourceID:   id,
		RawPayload: payload,
		FetchedAt:  a.now(),
		URL:        row["url"],
	}, true
}

func rowMatchesLocation(row map[string]string, needle string) bool {
	return strings.Contains(strings.ToLower(row["city"]), needle) ||
		strings.Contains(strings.ToLower(row["address"]), needle)
}

func feedPropertyType(raw string) model.PropertyType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return model.PropertyTypeUnknown
	case "house", "terraced", "semi-detached", "detached", "bungalow", "cottage":
		return model.PropertyTypeHouse
	case "flat", "apartment", "maisonette":
		return model.PropertyTypeFlat
	case "studio":
		return model.PropertyTypeStudio
	default:
		return model.PropertyType(strings.ToLower(strings.TrimSpace(raw)))
	}
}

func feedBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "y", "yes", "true":
		return true
	default:
		return false
	}
}

// feedTimestamp parses the feed's updated_at column. A present but
// unparseable value maps to the zero time so validation flags it; an
// absent value falls back to the fetch time.
func feedTimestamp(raw string, fallback time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Time(fallback)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.Time(t)
		}
	}
	var zero time.Time
	return &zero
}

func splitImageURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
