package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/propfolio/catalog-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It keeps the
// Postgres schema minus the PostGIS geometry column; proximity queries
// are a Postgres feature.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	source            TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	title             TEXT,
	description       TEXT,
	price             REAL,
	bedrooms          REAL,
	bathrooms         REAL,
	property_type     TEXT,
	address           TEXT,
	postcode          TEXT,
	city              TEXT,
	latitude          REAL,
	longitude         REAL,
	floor_area        REAL,
	garden            INTEGER NOT NULL DEFAULT 0,
	parking           INTEGER NOT NULL DEFAULT 0,
	furnished         TEXT,
	listing_url       TEXT,
	image_urls        TEXT,
	last_updated      DATETIME,
	fetched_at        DATETIME NOT NULL,
	reliability_score REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
CREATE INDEX IF NOT EXISTS idx_listings_postcode ON listings(postcode);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertSQL = `
INSERT INTO listings (
	source, source_id, title, description, price, bedrooms, bathrooms,
	property_type, address, postcode, city, latitude, longitude,
	floor_area, garden, parking, furnished, listing_url, image_urls,
	last_updated, fetched_at, reliability_score, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT (source, source_id) DO UPDATE SET
	title             = COALESCE(excluded.title, listings.title),
	description       = COALESCE(excluded.description, listings.description),
	price             = COALESCE(excluded.price, listings.price),
	bedrooms          = COALESCE(excluded.bedrooms, listings.bedrooms),
	bathrooms         = COALESCE(excluded.bathrooms, listings.bathrooms),
	property_type     = COALESCE(excluded.property_type, listings.property_type),
	address           = COALESCE(excluded.address, listings.address),
	postcode          = COALESCE(excluded.postcode, listings.postcode),
	city              = COALESCE(excluded.city, listings.city),
	latitude          = COALESCE(excluded.latitude, listings.latitude),
	longitude         = COALESCE(excluded.longitude, listings.longitude),
	floor_area        = COALESCE(excluded.floor_area, listings.floor_area),
	garden            = excluded.garden,
	parking           = excluded.parking,
	furnished         = COALESCE(excluded.furnished, listings.furnished),
	listing_url       = COALESCE(excluded.listing_url, listings.listing_url),
	image_urls        = COALESCE(excluded.image_urls, listings.image_urls),
	last_updated      = COALESCE(excluded.last_updated, listings.last_updated),
	fetched_at        = excluded.fetched_at,
	reliability_score = excluded.reliability_score,
	updated_at        = datetime('now')
`

func (s *SQLiteStore) UpsertListing(ctx context.Context, l *model.NormalizedListing) error {
	if l.Lineage.Source == "" || l.Lineage.SourceID == "" {
		return eris.New("sqlite: listing has no source identity")
	}

	imagesJSON, err := imageURLsJSON(l.ImageURLs)
	if err != nil {
		return err
	}
	var images *string
	if imagesJSON != nil {
		s := string(imagesJSON)
		images = &s
	}

	_, err = s.db.ExecContext(ctx, sqliteUpsertSQL,
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
		nullFloat(l.FloorArea),
		l.Garden,
		l.Parking,
		nullString(string(l.Furnished)),
		nullString(l.ListingURL),
		images,
		nullTime(l.LastUpdated),
		l.Lineage.FetchedAt,
		l.Lineage.ReliabilityScore,
	)
	return eris.Wrapf(err, "sqlite: upsert listing %s", l.Key())
}

const sqliteSelectColumns = `
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

func (s *SQLiteStore) GetListing(ctx context.Context, source, sourceID string) (*model.NormalizedListing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSelectColumns+` FROM listings WHERE source = ? AND source_id = ?`,
		source, sourceID,
	)

	l, err := scanSQLiteListing(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %s:%s", source, sourceID)
	}
	return l, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, filter ListingFilter) ([]model.NormalizedListing, error) {
	query := `SELECT ` + sqliteSelectColumns + ` FROM listings WHERE true`
	args := []any{}

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.City != "" {
		query += ` AND lower(city) = lower(?)`
		args = append(args, filter.City)
	}
	if filter.MinPrice > 0 {
		query += ` AND price >= ?`
		args = append(args, filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		query += ` AND price <= ?`
		args = append(args, filter.MaxPrice)
	}
	query += ` ORDER BY source, source_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close() //nolint:errcheck

	var listings []model.NormalizedListing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM listings`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count listings")
}

func scanSQLiteListing(row scanner) (*model.NormalizedListing, error) {
	var l model.NormalizedListing
	var furnished string
	var imagesJSON sql.NullString

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
	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &l.ImageURLs); err != nil {
			return nil, eris.Wrap(err, "unmarshal image urls")
		}
	}
	return &l, nil
}
