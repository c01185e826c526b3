package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// UserRepository handles users and their personalised driver weights
type UserRepository struct {
	pool DatabasePool
}

func NewUserRepository(pool DatabasePool) *UserRepository {
	return &UserRepository{pool: pool}
}

// ListUsers returns every user that tracks at least one listing
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.telegram_chat_id, u.created_at
		FROM users u
		WHERE EXISTS (SELECT 1 FROM listings l WHERE l.user_id = u.id AND l.tracked)
		ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.TelegramChatID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// GetUser returns one user or ErrNotFound
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT id, email, telegram_chat_id, created_at FROM users WHERE id = $1`

	var u models.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Email, &u.TelegramChatID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetDriverWeights returns the user's override, or nil when none is stored
func (r *UserRepository) GetDriverWeights(ctx context.Context, userID string) (*models.DriverWeights, error) {
	query := `SELECT reviews, bsr, royalty, price FROM user_driver_weights WHERE user_id = $1`

	var w models.DriverWeights
	err := r.pool.QueryRow(ctx, query, userID).Scan(&w.Reviews, &w.BSR, &w.Royalty, &w.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get driver weights: %w", err)
	}
	return &w, nil
}

// SaveDriverWeights stores the user's override, replacing any previous one
func (r *UserRepository) SaveDriverWeights(ctx context.Context, userID string, w models.DriverWeights) error {
	query := `
		INSERT INTO user_driver_weights (user_id, reviews, bsr, royalty, price, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			reviews = EXCLUDED.reviews,
			bsr = EXCLUDED.bsr,
			royalty = EXCLUDED.royalty,
			price = EXCLUDED.price,
			updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, userID, w.Reviews, w.BSR, w.Royalty, w.Price); err != nil {
		return fmt.Errorf("failed to save driver weights: %w", err)
	}
	return nil
}
