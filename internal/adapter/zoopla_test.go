package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/resilience"
)

func testClient(source string) *Client {
	return NewClient(ClientOptions{
		Source:      source,
		QuotaCalls:  1000,
		QuotaWindow: time.Hour,
		HostRate:    1000,
		HostBurst:   1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	})
}

func zooplaPayload() map[string]any {
	return map[string]any{
		"listing_id":          "z-100",
		"displayable_address": "12 Mill Lane, Leeds LS1 4DY",
		"price":               285000.0,
		"num_bedrooms":        2.0,
		"num_bathrooms":       1.0,
		"property_type":       "Terraced house",
		"description":         "Lovely terraced house with garden",
		"latitude":            53.7997,
		"longitude":           -1.5492,
		"outcode":             "LS1",
		"county":              "Leeds",
		"details_url":         "https://zoopla.co.uk/property/100",
		"image_urls":          []any{"https://zoopla.co.uk/images/100_1.jpg"},
		"features":            []any{"Garden", "Parking"},
		"furnished_state":     "Part furnished",
	}
}

func TestZooplaSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Leeds", r.URL.Query().Get("area"))
		assert.Equal(t, "sale", r.URL.Query().Get("listing_status"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"listing":[
			{"listing_id":"z-1","displayable_address":"1 Mill Lane"},
			{"listing_id":"z-2","displayable_address":"2 Mill Lane"},
			{"displayable_address":"no id, skipped"}
		]}`))
	}))
	defer server.Close()

	a := NewZooplaAdapter("secret", testClient("zoopla"))
	a.baseURL = server.URL

	raws, err := a.Search(context.Background(), "Leeds", 5, 50)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "zoopla", raws[0].Source)
	assert.Equal(t, "z-1", raws[0].SourceID)
	assert.False(t, raws[0].FetchedAt.IsZero())
}

func TestZooplaSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"listing":[{"listing_id":"z-1"}]}`))
	}))
	defer server.Close()

	a := NewZooplaAdapter("secret", testClient("zoopla"))
	a.baseURL = server.URL

	raws, err := a.Search(context.Background(), "Leeds", 5, 50)
	require.NoError(t, err)
	assert.Len(t, raws, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestZooplaSearch_OutageReturnsNoResults(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewZooplaAdapter("secret", testClient("zoopla"))
	a.baseURL = server.URL

	// Exhausting the retry budget on a transient failure is an ordinary
	// outage: empty result, nil error.
	raws, err := a.Search(context.Background(), "Leeds", 5, 50)
	require.NoError(t, err)
	assert.Empty(t, raws)
	assert.Equal(t, int32(3), calls.Load())
}

func TestZooplaSearch_PermanentStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := NewZooplaAdapter("bad-key", testClient("zoopla"))
	a.baseURL = server.URL

	_, err := a.Search(context.Background(), "Leeds", 5, 50)
	require.Error(t, err)
	assert.True(t, resilience.IsFetchFailure(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestZooplaNormalize(t *testing.T) {
	a := NewZooplaAdapter("", nil)
	fetched := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raw := &model.RawListing{
		Source:     "zoopla",
		SourceID:   "z-100",
		RawPayload: zooplaPayload(),
		FetchedAt:  fetched,
	}

	l, err := a.Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "12 Mill Lane, Leeds LS1 4DY", l.Address)
	assert.Equal(t, "12 Mill Lane, Leeds LS1 4DY", l.Title)
	require.NotNil(t, l.Price)
	assert.Equal(t, 285000.0, *l.Price)
	require.NotNil(t, l.Bedrooms)
	assert.Equal(t, 2.0, *l.Bedrooms)
	assert.Equal(t, model.PropertyTypeHouse, l.PropertyType)
	assert.Equal(t, "LS1", l.Postcode)
	assert.Equal(t, "Leeds", l.City)
	assert.True(t, l.Garden)
	assert.True(t, l.Parking)
	assert.Equal(t, model.PartFurnished, l.Furnished)
	assert.Equal(t, []string{"https://zoopla.co.uk/images/100_1.jpg"}, l.ImageURLs)
	require.NotNil(t, l.LastUpdated)
	assert.Equal(t, fetched, *l.LastUpdated)

	assert.Equal(t, "zoopla", l.Lineage.Source)
	assert.Equal(t, "z-100", l.Lineage.SourceID)
	assert.Equal(t, 1.0, l.Lineage.ReliabilityScore)
}

func TestZooplaNormalize_FloorAreaShapes(t *testing.T) {
	a := NewZooplaAdapter("", nil)

	payload := zooplaPayload()
	payload["floor_area"] = map[string]any{"value": 850.0, "units": "sq_feet"}
	l, err := a.Normalize(&model.RawListing{Source: "zoopla", SourceID: "z-1", RawPayload: payload})
	require.NoError(t, err)
	require.NotNil(t, l.FloorArea)
	assert.Equal(t, 850.0, *l.FloorArea)

	payload = zooplaPayload()
	payload["floor_area"] = 72.5
	l, err = a.Normalize(&model.RawListing{Source: "zoopla", SourceID: "z-1", RawPayload: payload})
	require.NoError(t, err)
	require.NotNil(t, l.FloorArea)
	assert.Equal(t, 72.5, *l.FloorArea)
}

func TestZooplaNormalize_NilPayload(t *testing.T) {
	a := NewZooplaAdapter("", nil)
	_, err := a.Normalize(nil)
	assert.Error(t, err)
}

func TestZooplaPropertyType(t *testing.T) {
	assert.Equal(t, model.PropertyTypeFlat, zooplaPropertyType("Maisonette"))
	assert.Equal(t, model.PropertyTypeHouse, zooplaPropertyType("Semi-detached house"))
	assert.Equal(t, model.PropertyTypeStudio, zooplaPropertyType("Studio"))
	assert.Equal(t, model.PropertyTypeUnknown, zooplaPropertyType(""))
	assert.Equal(t, model.PropertyType("castle"), zooplaPropertyType("Castle"))
}
