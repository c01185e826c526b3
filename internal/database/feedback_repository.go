package database

import (
	"context"
	"fmt"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// FeedbackRepository is the durable log of feedback actions
type FeedbackRepository struct {
	pool DatabasePool
}

func NewFeedbackRepository(pool DatabasePool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// InsertFeedbackEvent appends one event and fills in its id and created_at
func (r *FeedbackRepository) InsertFeedbackEvent(ctx context.Context, e *models.FeedbackEvent) error {
	query := `
		INSERT INTO feedback_events (user_id, snapshot_id, asin, sign)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, e.UserID, e.SnapshotID, e.ASIN, string(e.Sign)).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback event: %w", err)
	}
	return nil
}
