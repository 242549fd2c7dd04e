package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// PostgresWriter persists scraped listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to
// accept connections, runs schema migrations, and returns a ready-to-use
// PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres-ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id          SERIAL PRIMARY KEY,
			source      VARCHAR(50)   NOT NULL,
			title       TEXT          NOT NULL,
			price_usd   NUMERIC(12,2) NOT NULL DEFAULT 0,
			url         TEXT          UNIQUE NOT NULL,
			posted_at   TEXT          NOT NULL DEFAULT '',
			scraped_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price  ON listings(price_usd);
		CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source);
	`)
	return err
}

// Write batch-inserts listings. A URL already stored is refreshed with the
// latest price and date.
func (pw *PostgresWriter) Write(ctx context.Context, listings []models.Listing) error {
	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(ctx, listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(ctx context.Context, batch []models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*5)
	seen := make(map[string]struct{}, len(batch))

	for _, l := range batch {
		// ON CONFLICT cannot touch the same row twice in one statement.
		if _, dup := seen[l.URL]; dup {
			continue
		}
		seen[l.URL] = struct{}{}

		base := len(valueArgs)
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5))
		valueArgs = append(valueArgs, string(l.Source), l.Title, l.Price, l.URL, l.PostedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (source, title, price_usd, url, posted_at)
		VALUES %s
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title, price_usd = EXCLUDED.price_usd,
		    posted_at = EXCLUDED.posted_at, scraped_at = NOW()
	`, strings.Join(valueStrings, ","))

	if _, err := pw.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// StoredListing is a listing row with its storage metadata.
type StoredListing struct {
	ID int64
	models.Listing
	ScrapedAt time.Time
}

// FetchAll retrieves all stored listings, cheapest first.
func (pw *PostgresWriter) FetchAll(ctx context.Context) ([]StoredListing, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT id, source, title, price_usd, url, posted_at, scraped_at
		FROM listings
		ORDER BY price_usd, id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []StoredListing
	for rows.Next() {
		var l StoredListing
		var source string
		if err := rows.Scan(&l.ID, &source, &l.Title, &l.Price, &l.URL, &l.PostedAt, &l.ScrapedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.Source = models.Source(source)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Listings strips the storage metadata from rows.
func Listings(rows []StoredListing) []models.Listing {
	out := make([]models.Listing, len(rows))
	for i, r := range rows {
		out[i] = r.Listing
	}
	return out
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
