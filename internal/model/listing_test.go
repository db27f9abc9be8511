package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListingKey(t *testing.T) {
	l := NormalizedListing{Lineage: Lineage{Source: "zoopla", SourceID: "z-100"}}
	assert.Equal(t, "zoopla:z-100", l.Key())
}

func TestHasCoordinates(t *testing.T) {
	l := NormalizedListing{Latitude: Float(53.79), Longitude: Float(-1.54)}
	assert.True(t, l.HasCoordinates())

	l.Longitude = nil
	assert.False(t, l.HasCoordinates())

	// A coordinate that failed parsing does not count as present.
	l.Longitude = Float(math.NaN())
	assert.False(t, l.HasCoordinates())

	zero := NormalizedListing{Latitude: Float(0), Longitude: Float(0)}
	assert.True(t, zero.HasCoordinates(), "(0,0) is numeric; validation flags it, not the model")
}
