package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"homes-scraper/models"
	"homes-scraper/utils"
)

const pgBatchSize = 50

// listingColumns is the insert column order; buildInsert emits args in the
// same order.
var listingColumns = []string{
	"session", "url", "scraped_at", "price", "beds", "baths", "living_area",
	"lot_size", "address", "property_type", "year_built", "price_per_sqft",
	"monthly_payment", "region", "image_url", "walk_score", "bike_score",
	"transit_score", "details",
}

// PostgresWriter persists listing records to PostgreSQL. Scalar fields get
// their own columns; the nested fields are kept in a JSONB details column.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// pings, runs schema migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, Logger: logger}
	err = retry.Do(ctx, "postgres ping", func(int) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id              SERIAL PRIMARY KEY,
			session         VARCHAR(100) NOT NULL,
			url             TEXT         UNIQUE NOT NULL,
			scraped_at      TIMESTAMPTZ  NOT NULL,
			price           TEXT         NOT NULL DEFAULT 'N/A',
			beds            TEXT         NOT NULL DEFAULT 'N/A',
			baths           TEXT         NOT NULL DEFAULT 'N/A',
			living_area     TEXT         NOT NULL DEFAULT 'N/A',
			lot_size        TEXT         NOT NULL DEFAULT 'N/A',
			address         TEXT         NOT NULL DEFAULT 'N/A',
			property_type   TEXT         NOT NULL DEFAULT 'N/A',
			year_built      TEXT         NOT NULL DEFAULT 'N/A',
			price_per_sqft  TEXT         NOT NULL DEFAULT 'N/A',
			monthly_payment TEXT         NOT NULL DEFAULT 'N/A',
			region          TEXT         NOT NULL DEFAULT 'N/A',
			image_url       TEXT         NOT NULL DEFAULT 'N/A',
			walk_score      TEXT         NOT NULL DEFAULT 'N/A',
			bike_score      TEXT         NOT NULL DEFAULT 'N/A',
			transit_score   TEXT         NOT NULL DEFAULT 'N/A',
			details         JSONB        NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_session       ON listings(session);
		CREATE INDEX IF NOT EXISTS idx_listings_property_type ON listings(property_type);
		CREATE INDEX IF NOT EXISTS idx_listings_region        ON listings(region);
	`)
	return err
}

// Persist batch-inserts records. Records whose URL is already stored are
// skipped. The returned location names the table.
func (pw *PostgresWriter) Persist(ctx context.Context, name string, records []*models.ListingRecord) (string, error) {
	for i := 0; i < len(records); i += pgBatchSize {
		end := i + pgBatchSize
		if end > len(records) {
			end = len(records)
		}
		query, args, err := buildInsert(name, records[i:end])
		if err != nil {
			return "", err
		}
		if _, err := pw.db.ExecContext(ctx, query, args...); err != nil {
			return "", fmt.Errorf("postgres: insert batch: %w", err)
		}
	}
	pw.logger.Info("[postgres] Stored %d records for %s", len(records), name)
	return "postgres:listings", nil
}

// details is the JSONB payload for a record's nested fields.
type details struct {
	ElementarySchool models.School       `json:"elementary_school"`
	MiddleSchool     models.School       `json:"middle_school"`
	HighSchool       models.School       `json:"high_school"`
	FloodRisk        models.Risk         `json:"flood_risk"`
	FireRisk         models.Risk         `json:"fire_risk"`
	WindRisk         models.Risk         `json:"wind_risk"`
	AirRisk          models.Risk         `json:"air_risk"`
	HeatRisk         models.Risk         `json:"heat_risk"`
	InteriorFeatures []string            `json:"interior_features"`
	OtherRooms       []string            `json:"other_rooms"`
	Appliances       []string            `json:"appliances"`
	Utilities        map[string]string   `json:"utilities"`
	Parking          map[string]string   `json:"parking"`
	PriceHistory     []models.PriceEvent `json:"price_history"`
	NearbyCities     []string            `json:"nearby_cities"`
}

func detailsOf(r *models.ListingRecord) details {
	return details{
		ElementarySchool: r.ElementarySchool,
		MiddleSchool:     r.MiddleSchool,
		HighSchool:       r.HighSchool,
		FloodRisk:        r.FloodRisk,
		FireRisk:         r.FireRisk,
		WindRisk:         r.WindRisk,
		AirRisk:          r.AirRisk,
		HeatRisk:         r.HeatRisk,
		InteriorFeatures: r.InteriorFeatures,
		OtherRooms:       r.OtherRooms,
		Appliances:       r.Appliances,
		Utilities:        r.Utilities,
		Parking:          r.Parking,
		PriceHistory:     r.PriceHistory,
		NearbyCities:     r.NearbyCities,
	}
}

func buildInsert(session string, batch []*models.ListingRecord) (string, []interface{}, error) {
	n := len(listingColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*n)

	for idx, r := range batch {
		placeholders := make([]string, n)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*n+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		extra, err := json.Marshal(detailsOf(r))
		if err != nil {
			return "", nil, fmt.Errorf("postgres: marshal details for %s: %w", r.URL, err)
		}
		valueArgs = append(valueArgs,
			session, r.URL, r.ScrapedAt, r.Price, r.Beds, r.Baths, r.LivingArea,
			r.LotSize, r.Address, r.PropertyType, r.YearBuilt, r.PricePerSqft,
			r.MonthlyPayment, r.Region, r.ImageURL, r.WalkScore, r.BikeScore,
			r.TransitScore, string(extra))
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (%s)
		VALUES %s
		ON CONFLICT (url) DO NOTHING
	`, strings.Join(listingColumns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs, nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored records, used by the insight report.
func (pw *PostgresWriter) FetchAll(ctx context.Context) ([]*models.ListingRecord, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT url, scraped_at, price, beds, baths, living_area, lot_size, address,
		       property_type, year_built, price_per_sqft, monthly_payment, region,
		       image_url, walk_score, bike_score, transit_score, details
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []*models.ListingRecord
	for rows.Next() {
		var (
			r   = &models.ListingRecord{}
			raw []byte
		)
		if err := rows.Scan(
			&r.URL, &r.ScrapedAt, &r.Price, &r.Beds, &r.Baths, &r.LivingArea,
			&r.LotSize, &r.Address, &r.PropertyType, &r.YearBuilt, &r.PricePerSqft,
			&r.MonthlyPayment, &r.Region, &r.ImageURL, &r.WalkScore, &r.BikeScore,
			&r.TransitScore, &raw,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		var d details
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("postgres: decode details for %s: %w", r.URL, err)
		}
		applyDetails(r, d)
		records = append(records, r)
	}
	return records, rows.Err()
}

func applyDetails(r *models.ListingRecord, d details) {
	r.ElementarySchool = d.ElementarySchool
	r.MiddleSchool = d.MiddleSchool
	r.HighSchool = d.HighSchool
	r.FloodRisk = d.FloodRisk
	r.FireRisk = d.FireRisk
	r.WindRisk = d.WindRisk
	r.AirRisk = d.AirRisk
	r.HeatRisk = d.HeatRisk
	r.InteriorFeatures = d.InteriorFeatures
	r.OtherRooms = d.OtherRooms
	r.Appliances = d.Appliances
	r.Utilities = d.Utilities
	r.Parking = d.Parking
	r.PriceHistory = d.PriceHistory
	r.NearbyCities = d.NearbyCities
}
