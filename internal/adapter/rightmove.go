package adapter

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/model"
)

const rightmoveBaseURL = "https://api.rightmove.co.uk"

// RightmoveAdapter fetches listings through the Rightmove partner API.
// Partner access allows 1000 requests per hour.
type RightmoveAdapter struct {
	client  *Client
	apiKey  string
	baseURL string
	now     func() time.Time
}

// NewRightmoveAdapter creates a Rightmove adapter. A nil client gets the
// source defaults.
func NewRightmoveAdapter(apiKey string, client *Client) *RightmoveAdapter {
	if client == nil {
		client = NewClient(ClientOptions{
			Source:      "rightmove",
			QuotaCalls:  1000,
			QuotaWindow: time.Hour,
		})
	}
	return &RightmoveAdapter{
		client:  client,
		apiKey:  apiKey,
		baseURL: rightmoveBaseURL,
		now:     time.Now,
	}
}

func (a *RightmoveAdapter) Source() string { return "rightmove" }

type rightmoveSearchResponse struct {
	Properties []map[string]any `json:"properties"`
}

// Search queries the partner search endpoint.
func (a *RightmoveAdapter) Search(ctx context.Context, location string, radiusKM float64, maxResults int) ([]model.RawListing, error) {
	zap.L().Info("searching rightmove",
		zap.String("location", location),
		zap.Float64("radius_km", radiusKM),
	)

	params := url.Values{
		"location": {location},
		"radius":   {strconv.FormatFloat(radiusKM, 'f', -1, 64)},
		"limit":    {strconv.Itoa(maxResults)},
		"apikey":   {a.apiKey},
	}

	var resp rightmoveSearchResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/properties/search", params, &resp); err != nil {
		if recoverableSearchErr(err) {
			zap.L().Warn("rightmove unavailable, returning no results", zap.Error(err))
			return []model.RawListing{}, nil
		}
		return nil, eris.Wrap(err, "rightmove: search")
	}

	raws := make([]model.RawListing, 0, len(resp.Properties))
	for _, payload := range resp.Properties {
		id := payloadString(payload, "id")
		if id == "" {
			continue
		}
		raws = append(raws, model.RawListing{
			Source:     a.Source(),
			SourceID:   id,
			RawPayload: payload,
			FetchedAt:  a.now(),
			URL:        payloadString(payload, "propertyUrl"),
		})
	}
	return raws, nil
}

// FetchDetails fetches one listing by id.
func (a *RightmoveAdapter) FetchDetails(ctx context.Context, sourceID string) (*model.RawListing, error) {
	params := url.Values{"apikey": {a.apiKey}}

	var payload map[string]any
	if err := a.client.GetJSON(ctx, a.baseURL+"/properties/"+url.PathEscape(sourceID), params, &payload); err != nil {
		return nil, eris.Wrapf(err, "rightmove: details %s", sourceID)
	}
	if len(payload) == 0 {
		return nil, eris.Errorf("rightmove: listing %s not found", sourceID)
	}

	return &model.RawListing{
		Source:     a.Source(),
		SourceID:   sourceID,
		RawPayload: payload,
		FetchedAt:  a.now(),
		URL:        payloadString(payload, "propertyUrl"),
	}, nil
}

// Normalize maps a Rightmove payload to the canonical record. The portal
// formats prices as display strings and nests coordinates under location.
func (a *RightmoveAdapter) Normalize(raw *model.RawListing) (*model.NormalizedListing, error) {
	if raw == nil || raw.RawPayload == nil {
		return nil, eris.New("rightmove: nil raw payload")
	}
	payload := raw.RawPayload

	address := payloadString(payload, "displayAddress")
	lat, lon, city := rightmoveLocation(payload)

	l := &model.NormalizedListing{
		Title:        address,
		Description:  payloadString(payload, "summary"),
		Price:        extractPrice(payload["price"]),
		Bedrooms:     extractCount(payload["bedrooms"]),
		Bathrooms:    extractCount(payload["bathrooms"]),
		PropertyType: rightmovePropertyType(payloadString(payload, "propertyType")),
		Address:      address,
		Postcode:     extractPostcode(address),
		City:         city,
		Latitude:     lat,
		Longitude:    lon,
		FloorArea:    rightmoveFloorArea(payload),
		Garden:       containsFeature("garden", payload["keyFeatures"]),
		Parking:      containsFeature("parking", payload["keyFeatures"]),
		Furnished:    rightmoveFurnished(payload),
		ListingURL:   payloadString(payload, "propertyUrl"),
		ImageURLs:    extractImageURLs(payload["propertyImages"]),
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

func rightmoveLocation(payload map[string]any) (lat, lon *float64, city string) {
	location, ok := payload["location"].(map[string]any)
	if !ok {
		return nil, nil, ""
	}
	return payloadNumber(location, "latitude"),
		payloadNumber(location, "longitude"),
		payloadString(location, "displayName")
}

func rightmovePropertyType(raw string) model.PropertyType {
	if raw == "" {
		return model.PropertyTypeUnknown
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "flat"),
		strings.Contains(lower, "apartment"),
		strings.Contains(lower, "maisonette"):
		return model.PropertyTypeFlat
	case strings.Contains(lower, "house"),
		strings.Contains(lower, "bungalow"),
		strings.Contains(lower, "cottage"):
		return model.PropertyTypeHouse
	case strings.Contains(lower, "studio"):
		return model.PropertyTypeStudio
	default:
		return model.PropertyType(lower)
	}
}

func rightmoveFloorArea(payload map[string]any) *float64 {
	size, ok := payload["size"].(map[string]any)
	if !ok {
		return nil
	}
	return payloadNumber(size, "squareFeet")
}

func rightmoveFurnished(payload map[string]any) model.FurnishedStatus {
	features, ok := payload["keyFeatures"].([]any)
	if !ok {
		return model.FurnishedUnknown
	}
	for _, f := range features {
		s, ok := f.(string)
		if !ok {
			continue
		}
		if status := furnishedFromText(s); status != model.FurnishedUnknown {
			return status
		}
	}
	return model.FurnishedUnknown
}
