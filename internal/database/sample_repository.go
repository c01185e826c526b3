package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// SampleRepository reads scraped listing observations
type SampleRepository struct {
	pool DatabasePool
}

func NewSampleRepository(pool DatabasePool) *SampleRepository {
	return &SampleRepository{pool: pool}
}

// GetSamples returns the listing's samples captured in [from, to), oldest first
func (r *SampleRepository) GetSamples(ctx context.Context, listingID int64, from, to time.Time) ([]models.Sample, error) {
	query := `
		SELECT s.listing_id, l.asin, l.country, s.captured_at, s.bsr, s.price, s.review_count
		FROM listing_samples s
		JOIN listings l ON l.id = s.listing_id
		WHERE s.listing_id = $1 AND s.captured_at >= $2 AND s.captured_at < $3
		ORDER BY s.captured_at ASC`

	rows, err := r.pool.Query(ctx, query, listingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.ListingID, &s.ASIN, &s.Country, &s.Timestamp, &s.BSR, &s.Price, &s.ReviewCount); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	return samples, nil
}

// InsertSample stores one observation
func (r *SampleRepository) InsertSample(ctx context.Context, s models.Sample) error {
	query := `
		INSERT INTO listing_samples (listing_id, captured_at, bsr, price, review_count)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, s.ListingID, s.Timestamp, s.BSR, s.Price, s.ReviewCount); err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}
