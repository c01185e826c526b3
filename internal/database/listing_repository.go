package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/kdp-pulse/internal/models"
)

const listingColumns = `id, user_id, asin, country, title, page_count, price, interior, created_at`

// ListingRepository handles the listings a user tracks
type ListingRepository struct {
	pool DatabasePool
}

func NewListingRepository(pool DatabasePool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func scanListing(row pgx.Row) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.UserID, &l.ASIN, &l.Country, &l.Title, &l.PageCount, &l.Price, &l.Interior, &l.CreatedAt)
	return l, err
}

// ListTrackedListings returns the user's tracked listings ordered by id
func (r *ListingRepository) ListTrackedListings(ctx context.Context, userID string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE user_id = $1 AND tracked ORDER BY id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// GetListing returns one listing or ErrNotFound
func (r *ListingRepository) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &l, nil
}

// CreateListing inserts a listing and fills in its id and created_at
func (r *ListingRepository) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (user_id, asin, country, title, page_count, price, interior)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, l.UserID, l.ASIN, l.Country, l.Title, l.PageCount, l.Price, l.Interior).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}
