package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/propfolio/catalog-cli/internal/model"
)

// pointEWKB encodes a listing's coordinates as EWKB with SRID 4326 for
// the PostGIS geom column. Missing or non-numeric coordinates yield nil,
// which stores as NULL.
func pointEWKB(l *model.NormalizedListing) ([]byte, error) {
	if !l.HasCoordinates() {
		return nil, nil
	}

	p := geom.NewPointFlat(geom.XY, []float64{*l.Longitude, *l.Latitude}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}
