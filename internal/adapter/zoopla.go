package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/model"
)

const zooplaBaseURL = "https://api.zoopla.co.uk/api/v1"

// zooplaTypeMapping translates portal terminology to the canonical types.
var zooplaTypeMapping = []struct {
	keyword string
	mapped  model.PropertyType
}{
	{"flat", model.PropertyTypeFlat},
	{"apartment", model.PropertyTypeFlat},
	{"maisonette", model.PropertyTypeFlat},
	{"house", model.PropertyTypeHouse},
	{"terraced", model.PropertyTypeHouse},
	{"semi-detached", model.PropertyTypeHouse},
	{"detached", model.PropertyTypeHouse},
	{"bungalow", model.PropertyTypeHouse},
	{"studio", model.PropertyTypeStudio},
}

// ZooplaAdapter fetches listings from the Zoopla API. The free tier
// allows 100 requests per hour, which is the default client quota.
type ZooplaAdapter struct {
	client  *Client
	apiKey  string
	baseURL string
	now     func() time.Time
}

// NewZooplaAdapter creates a Zoopla adapter. A nil client gets the
// source defaults.
func NewZooplaAdapter(apiKey string, client *Client) *ZooplaAdapter {
	if client == nil {
		client = NewClient(ClientOptions{
			Source:      "zoopla",
			QuotaCalls:  100,
			QuotaWindow: time.Hour,
		})
	}
	return &ZooplaAdapter{
		client:  client,
		apiKey:  apiKey,
		baseURL: zooplaBaseURL,
		now:     time.Now,
	}
}

func (a *ZooplaAdapter) Source() string { return "zoopla" }

type zooplaSearchResponse struct {
	Listing []map[string]any `json:"listing"`
}

// Search queries the property_listings endpoint. The portal caps page
// size at 100.
func (a *ZooplaAdapter) Search(ctx context.Context, location string, radiusKM float64, maxResults int) ([]model.RawListing, error) {
	zap.L().Info("searching zoopla",
		zap.String("location", location),
		zap.Float64("radius_km", radiusKM),
	)

	pageSize := maxResults
	if pageSize > 100 {
		pageSize = 100
	}
	params := url.Values{
		"area":           {location},
		"radius":         {strconv.FormatFloat(radiusKM, 'f', -1, 64)},
		"page_size":      {strconv.Itoa(pageSize)},
		"listing_status": {"sale"},
		"api_key":        {a.apiKey},
	}

	var resp zooplaSearchResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/property_listings", params, &resp); err != nil {
		if recoverableSearchErr(err) {
			zap.L().Warn("zoopla unavailable, returning no results", zap.Error(err))
			return []model.RawListing{}, nil
		}
		return nil, eris.Wrap(err, "zoopla: search")
	}

	raws := make([]model.RawListing, 0, len(resp.Listing))
	for _, payload := range resp.Listing {
		id := payloadString(payload, "listing_id")
		if id == "" {
			continue
		}
		raws = append(raws, model.RawListing{
			Source:     a.Source(),
			SourceID:   id,
			RawPayload: payload,
			FetchedAt:  a.now(),
			URL:        payloadString(payload, "details_url"),
		})
	}
	return raws, nil
}

// FetchDetails fetches one listing by id.
func (a *ZooplaAdapter) FetchDetails(ctx context.Context, sourceID string) (*model.RawListing, error) {
	params := url.Values{
		"listing_id": {sourceID},
		"api_key":    {a.apiKey},
	}

	var resp zooplaSearchResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/property_listings", params, &resp); err != nil {
		return nil, eris.Wrapf(err, "zoopla: details %s", sourceID)
	}
	if len(resp.Listing) == 0 {
		return nil, eris.Errorf("zoopla: listing %s not found", sourceID)
	}

	payload := resp.Listing[0]
	return &model.RawListing{
		Source:     a.Source(),
		SourceID:   sourceID,
		RawPayload: payload,
		FetchedAt:  a.now(),
		URL:        payloadString(payload, "details_url"),
	}, nil
}

// Normalize maps a Zoopla payload to the canonical record.
func (a *ZooplaAdapter) Normalize(raw *model.RawListing) (*model.NormalizedListing, error) {
	if raw == nil || raw.RawPayload == nil {
		return nil, eris.New("zoopla: nil raw payload")
	}
	payload := raw.RawPayload

	address := payloadString(payload, "displayable_address")
	l := &model.NormalizedListing{
		Title:        address,
		Description:  payloadString(payload, "description"),
		Price:        extractPrice(payload["price"]),
		Bedrooms:     extractCount(payload["num_bedrooms"]),
		Bathrooms:    extractCount(payload["num_bathrooms"]),
		PropertyType: zooplaPropertyType(payloadString(payload, "property_type")),
		Address:      address,
		Postcode:     payloadString(payload, "outcode"),
		City:         payloadString(payload, "county"),
		Latitude:     payloadNumber(payload, "latitude"),
		Longitude:    payloadNumber(payload, "longitude"),
		FloorArea:    zooplaFloorArea(payload),
		Garden:       containsFeature("garden", payload["features"], payload["property_features"], payloadString(payload, "description")),
		Parking:      containsFeature("parking", payload["features"], payload["property_features"], payloadString(payload, "description")),
		Furnished:    zooplaFurnished(payload),
		ListingURL:   payloadString(payload, "details_url"),
		ImageURLs:    extractImageURLs(payload["image_urls"]),
		LastUpdated:  model.Time(raw.FetchedAt),
	}

	l.Lineage = model.Lineage{
		Source:           raw.Source,
		SourceID:         raw.SourceID,
		FetchedAt:        raw.FetchedAt,
		ReliabilityScore: ReliabilityScore(l),
	}
	return l, nil
}

func zooplaPropertyType(raw string) model.PropertyType {
	if raw == "" {
		return model.PropertyTypeUnknown
	}
	lower := strings.ToLower(raw)
	for _, m := range zooplaTypeMapping {
		if strings.Contains(lower, m.keyword) {
			return m.mapped
		}
	}
	return model.PropertyType(lower)
}

// zooplaFloorArea handles the two shapes the portal uses: a bare number
// or a nested object with value and units.
func zooplaFloorArea(payload map[string]any) *float64 {
	v, ok := payload["floor_area"]
	if !ok || v == nil {
		return nil
	}
	if nested, ok := v.(map[string]any); ok {
		return coerceNumber(nested["value"])
	}
	return coerceNumber(v)
}

func zooplaFurnished(payload map[string]any) model.FurnishedStatus {
	if state := payloadString(payload, "furnished_state"); state != "" {
		if status := furnishedFromText(state); status != model.FurnishedUnknown {
			return status
		}
	}

	features := fmt.Sprint(payload["features"])
	if containsFeature("unfurnished", features) {
		return model.Unfurnished
	}
	if containsFeature("furnished", features) {
		return model.Furnished
	}
	return model.FurnishedUnknown
}
