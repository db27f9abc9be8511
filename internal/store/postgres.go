package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/propfolio/catalog-cli/internal/db"
	"github.com/propfolio/catalog-cli/internal/model"
)

// PostgresStore implements Store on pgx with PostGIS geometry.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS listings (
	source            TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	title             TEXT,
	description       TEXT,
	price             DOUBLE PRECISION,
	bedrooms          DOUBLE PRECISION,
	bathrooms         DOUBLE PRECISION,
	property_type     TEXT,
	address           TEXT,
	postcode          TEXT,
	city              TEXT,
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	geom              geometry(Point, 4326),
	floor_area        DOUBLE PRECISION,
	garden            BOOLEAN NOT NULL DEFAULT false,
	parking           BOOLEAN NOT NULL DEFAULT false,
	furnished         TEXT,
	listing_url       TEXT,
	image_urls        JSONB,
	last_updated      TIMESTAMPTZ,
	fetched_at        TIMESTAMPTZ NOT NULL,
	reliability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
CREATE INDEX IF NOT EXISTS idx_listings_postcode ON listings(postcode);
CREATE INDEX IF NOT EXISTS idx_listings_geom ON listings USING GIST(geom);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// upsertListingSQL merges on (source, source_id): COALESCE keeps the
// stored value when the incoming field is NULL, booleans always take the
// incoming value.
const upsertListingSQL = `
INSERT INTO listings (
	source, source_id, title, description, price, bedrooms, bathrooms,
	property_type, address, postcode, city, latitude, longitude, geom,
	floor_area, garden, parking, furnished, listing_url, image_urls,
	last_updated, fetched_at, reliability_score, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	ST_GeomFromEWKB($14), $15, $16, $17, $18, $19, $20, $21, $22, $23, now()
)
ON CONFLICT (source, source_id) DO UPDATE SET
	title             = COALESCE(EXCLUDED.title, listings.title),
	description       = COALESCE(EXCLUDED.description, listings.description),
	price             = COALESCE(EXCLUDED.price, listings.price),
	bedrooms          = COALESCE(EXCLUDED.bedrooms, listings.bedrooms),
	bathrooms         = COALESCE(EXCLUDED.bathrooms, listings.bathrooms),
	property_type     = COALESCE(EXCLUDED.property_type, listings.property_type),
	address           = COALESCE(EXCLUDED.address, listings.address),
	postcode          = COALESCE(EXCLUDED.postcode, listings.postcode),
	city              = COALESCE(EXCLUDED.city, listings.city),
	latitude          = COALESCE(EXCLUDED.latitude, listings.latitude),
	longitude         = COALESCE(EXCLUDED.longitude, listings.longitude),
	geom              = COALESCE(EXCLUDED.geom, listings.geom),
	floor_area        = COALESCE(EXCLUDED.floor_area, listings.floor_area),
	garden            = EXCLUDED.garden,
	parking           = EXCLUDED.parking,
	furnished         = COALESCE(EXCLUDED.furnished, listings.furnished),
	listing_url       = COALESCE(EXCLUDED.listing_url, listings.listing_url),
	image_urls        = COALESCE(EXCLUDED.image_urls, listings.image_urls),
	last_updated      = COALESCE(EXCLUDED.last_updated, listings.last_updated),
	fetched_at        = EXCLUDED.fetched_at,
	reliability_score = EXCLUDED.reliability_score,
	updated_at        = now()
`

func (s *PostgresStore) UpsertListing(ctx context.Context, l *model.NormalizedListing) error {
	if l.Lineage.Source == "" || l.Lineage.SourceID == "" {
		return eris.New("postgres: listing has no source identity")
	}

	geomBytes, err := pointEWKB(l)
	if err != nil {
		return err
	}

	imagesJSON, err := imageURLsJSON(l.ImageURLs)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, upsertListingSQL,
		l.Lineage.Source,
		l.Lineage.SourceID,
		nullString(l.Title),
		nullString(l.Description),
		nullFloat(l.Price),
		nullFloat(l.Bedrooms),
		nullFloat(l.Bathrooms),
		nullPropertyType(l.PropertyType),
		nullString(l.Address),
		nullString(l.Postcode),
		nullString(l.City),
		nullFloat(l.Latitude),
		nullFloat(l.Longitude),
		geomBytes,
		nullFloat(l.FloorArea),
		l.Garden,
		l.Parking,
		nullString(string(l.Furnished)),
		nullString(l.ListingURL),
		imagesJSON,
		nullTime(l.LastUpdated),
		l.Lineage.FetchedAt,
		l.Lineage.ReliabilityScore,
	)
	return eris.Wrapf(err, "postgres: upsert listing %s", l.Key())
}

const selectListingColumns = `
	source, source_id,
	COALESCE(title, ''), COALESCE(description, ''),
	price, bedrooms, bathrooms,
	COALESCE(property_type, ''), COALESCE(address, ''),
	COALESCE(postcode, ''), COALESCE(city, ''),
	latitude, longitude, floor_area,
	garden, parking,
	COALESCE(furnished, ''), COALESCE(listing_url, ''),
	image_urls, last_updated, fetched_at, reliability_score
`

func (s *PostgresStore) GetListing(ctx context.Context, source, sourceID string) (*model.NormalizedListing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectListingColumns+` FROM listings WHERE source = $1 AND source_id = $2`,
		source, sourceID,
	)

	l, err := scanListing(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s:%s", source, sourceID)
	}
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, filter ListingFilter) ([]model.NormalizedListing, error) {
	query := `SELECT ` + selectListingColumns + ` FROM listings WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND lower(city) = lower($%d)`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.MinPrice > 0 {
		query += fmt.Sprintf(` AND price >= $%d`, argIdx)
		args = append(args, filter.MinPrice)
		argIdx++
	}
	if filter.MaxPrice > 0 {
		query += fmt.Sprintf(` AND price <= $%d`, argIdx)
		args = append(args, filter.MaxPrice)
		argIdx++
	}
	query += ` ORDER BY source, source_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var listings []model.NormalizedListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count listings")
}

// scanner covers pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (*model.NormalizedListing, error) {
	var l model.NormalizedListing
	var furnished string
	var imagesJSON []byte

	err := row.Scan(
		&l.Lineage.Source, &l.Lineage.SourceID,
		&l.Title, &l.Description,
		&l.Price, &l.Bedrooms, &l.Bathrooms,
		(*string)(&l.PropertyType), &l.Address,
		&l.Postcode, &l.City,
		&l.Latitude, &l.Longitude, &l.FloorArea,
		&l.Garden, &l.Parking,
		&furnished, &l.ListingURL,
		&imagesJSON, &l.LastUpdated, &l.Lineage.FetchedAt, &l.Lineage.ReliabilityScore,
	)
	if err != nil {
		return nil, err
	}

	l.Furnished = model.FurnishedStatus(furnished)
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &l.ImageURLs); err != nil {
			return nil, eris.Wrap(err, "unmarshal image urls")
		}
	}
	return &l, nil
}

func nullString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func nullPropertyType(t model.PropertyType) *string {
	if t == "" || t == model.PropertyTypeUnknown {
		return nil
	}
	s := string(t)
	return &s
}

// nullFloat stores NaN as NULL; an unparseable source value is a
// validation finding, not data worth persisting.
func nullFloat(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) {
		return nil
	}
	return f
}

func nullTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}

func imageURLsJSON(urls []string) ([]byte, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal image urls")
	}
	return data, nil
}
