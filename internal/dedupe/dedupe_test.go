package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfolio/catalog-cli/internal/model"
)

func listing(source, sourceID, address string, price, lat, lon float64) model.NormalizedListing {
	updated := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	return model.NormalizedListing{
		Title:        "Two bed terrace",
		Address:      address,
		Price:        model.Float(price),
		Bedrooms:     model.Float(2),
		Bathrooms:    model.Float(1),
		Latitude:     model.Float(lat),
		Longitude:    model.Float(lon),
		PropertyType: model.PropertyTypeHouse,
		LastUpdated:  &updated,
		Lineage: model.Lineage{
			Source:           source,
			SourceID:         sourceID,
			ReliabilityScore: 0.9,
		},
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12 Mill St, Leeds", "12 mill street leeds"},
		{"Flat 3, Rose Court", "apartment 3 rose court"},
		{"Apt 3  Rose   Ct", "apartment 3 rose court"},
		{"45 Château Rd.", "45 chateau road"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in), "input %q", tt.in)
	}
}

func TestAddressSimilarity(t *testing.T) {
	t.Run("identical after normalization", func(t *testing.T) {
		s := AddressSimilarity("12 Mill St, Leeds", "12 mill street leeds")
		assert.Equal(t, 1.0, s)
	})

	t.Run("word order insensitive", func(t *testing.T) {
		s := AddressSimilarity("Rose Court, 3 Mill Lane", "3 Mill Lane, Rose Court")
		assert.Equal(t, 1.0, s)
	})

	t.Run("truncation tolerated", func(t *testing.T) {
		s := AddressSimilarity("12 Mill Street", "12 Mill Street, Leeds LS1 4DY")
		assert.Equal(t, 1.0, s)
	})

	t.Run("different addresses score low", func(t *testing.T) {
		s := AddressSimilarity("12 Mill Street, Leeds", "88 Ocean Parade, Brighton")
		assert.Less(t, s, 0.6)
	})

	t.Run("empty address scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, AddressSimilarity("", "12 Mill Street"))
	})
}

func TestHaversineKM(t *testing.T) {
	// Leeds to Manchester is roughly 57-58 km.
	d := haversineKM(53.7997, -1.5492, 53.4808, -2.2426)
	assert.InDelta(t, 57.5, d, 2.0)

	assert.Equal(t, 0.0, haversineKM(53.8, -1.5, 53.8, -1.5))
}

func TestFindDuplicates_SameListingAcrossSources(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "12 Mill Ln, Leeds LS1 4DY", 285000, 53.7997, -1.5492)

	matches := d.FindDuplicates([]model.NormalizedListing{a, b})
	require.Len(t, matches, 1)
	assert.Equal(t, "zoopla:z-1", matches[0].Key1)
	assert.Equal(t, "rightmove:r-1", matches[0].Key2)
	assert.Equal(t, ConfidenceHigh, matches[0].Confidence)
	assert.Greater(t, matches[0].Score, 0.9)
	assert.NotEmpty(t, matches[0].Reasons)
}

func TestFindDuplicates_SymmetricScore(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "12 Mill Ln, Leeds", 290000, 53.7999, -1.5490)

	fwd := d.FindDuplicates([]model.NormalizedListing{a, b})
	rev := d.FindDuplicates([]model.NormalizedListing{b, a})
	require.Len(t, fwd, 1)
	require.Len(t, rev, 1)
	assert.InDelta(t, fwd[0].Score, rev[0].Score, 1e-9)
}

func TestFindDuplicates_SkipsSameSourceRecord(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := a

	matches := d.FindDuplicates([]model.NormalizedListing{a, b})
	assert.Empty(t, matches)
}

func TestFindDuplicates_DistantPropertiesDoNotMatch(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "88 Ocean Parade, Brighton BN2 1AA", 450000, 50.8225, -0.1372)

	matches := d.FindDuplicates([]model.NormalizedListing{a, b})
	assert.Empty(t, matches)
}

func TestFindDuplicates_MissingFieldsContributeZero(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b.Price = nil

	matches := d.FindDuplicates([]model.NormalizedListing{a, b})
	// Address 0.4 + proximity 0.3 + characteristics 0.1 still clears 0.7.
	require.Len(t, matches, 1)
	assert.Equal(t, ConfidenceMedium, matches[0].Confidence)
}

func TestDeduplicate_TransitiveClusterKeepsOneWinner(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "12 Mill Ln, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	c := listing("bulkfeed", "f-1", "12 Mill Lane Leeds LS1 4DY", 286000, 53.7998, -1.5493)
	c.Description = "Recently refurbished terrace"
	c.ImageURLs = []string{"https://img.example.com/1.jpg"}
	other := listing("zoopla", "z-2", "88 Ocean Parade, Brighton BN2 1AA", 450000, 50.8225, -0.1372)

	result := d.Deduplicate([]model.NormalizedListing{a, b, c, other})

	require.Len(t, result.Listings, 2)
	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Clusters[0], 3)

	// The most complete record wins and takes the cluster's first slot.
	assert.Equal(t, "bulkfeed:f-1", result.Listings[0].Key())
	assert.Equal(t, "zoopla:z-2", result.Listings[1].Key())
}

func TestDeduplicate_TransitiveClosureBridgesUnmatchedPair(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	// a and c carry conflicting district qualifiers, so their addresses
	// never clear the gate against each other; the bare address b links
	// both, and the cluster must still collapse to one record.
	a := listing("zoopla", "z-1", "12 Mill Lane, Holbeck", 285000, 53.7997, -1.5492)
	b := listing("rightmove", "r-1", "12 Mill Lane", 285000, 53.7997, -1.5492)
	c := listing("bulkfeed", "f-1", "12 Mill Lane, Armley", 285000, 53.7997, -1.5492)

	matches := d.FindDuplicates([]model.NormalizedListing{a, b, c})
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Contains(t, []string{m.Key1, m.Key2}, "rightmove:r-1",
			"a and c must only be linked through b")
	}

	result := d.Deduplicate([]model.NormalizedListing{a, b, c})
	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Clusters[0], 3)
	require.Len(t, result.Listings, 1)
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	result := d.Deduplicate(nil)
	assert.Empty(t, result.Listings)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Clusters)
}

func TestDeduplicate_SingleListingPassesThrough(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	result := d.Deduplicate([]model.NormalizedListing{a})

	require.Len(t, result.Listings, 1)
	assert.Equal(t, "zoopla:z-1", result.Listings[0].Key())
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Clusters)
}

func TestDeduplicate_NoDuplicatesPassesThrough(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	a := listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492)
	b := listing("zoopla", "z-2", "88 Ocean Parade, Brighton BN2 1AA", 450000, 50.8225, -0.1372)

	result := d.Deduplicate([]model.NormalizedListing{a, b})
	require.Len(t, result.Listings, 2)
	assert.Equal(t, "zoopla:z-1", result.Listings[0].Key())
	assert.Equal(t, "zoopla:z-2", result.Listings[1].Key())
	assert.Empty(t, result.Clusters)
}

func TestDeduplicate_OutputNeverExceedsInput(t *testing.T) {
	d := NewDeduplicator(DefaultConfig(), nil)

	in := []model.NormalizedListing{
		listing("zoopla", "z-1", "12 Mill Lane, Leeds LS1 4DY", 285000, 53.7997, -1.5492),
		listing("rightmove", "r-1", "12 Mill Ln, Leeds LS1 4DY", 285000, 53.7997, -1.5492),
		listing("zoopla", "z-2", "7 Rose Court, York YO1 7HT", 199000, 53.9600, -1.0873),
	}
	result := d.Deduplicate(in)
	assert.LessOrEqual(t, len(result.Listings), len(in))
}
