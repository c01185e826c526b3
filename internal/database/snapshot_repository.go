package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/irfndi/kdp-pulse/internal/models"
)

const snapshotColumns = `id, user_id, listing_id, asin, status, net_impact, sentiment, drivers, confidence, details, algo_version, created_at`

// DefaultSnapshotLimit bounds ListSnapshots when the filter sets no limit
const DefaultSnapshotLimit = 200

// SnapshotRepository is the insert-only snapshot log plus daily rollups
type SnapshotRepository struct {
	pool DatabasePool
}

func NewSnapshotRepository(pool DatabasePool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// InsertSnapshot appends a snapshot. Snapshots are never updated.
func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, s *models.Snapshot) error {
	details, err := json.Marshal(s.Details)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot details: %w", err)
	}
	drivers := s.Drivers
	if drivers == nil {
		drivers = []string{}
	}

	query := `
		INSERT INTO listing_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.ListingID, s.ASIN, string(s.Status), s.NetImpact, s.Sentiment,
		drivers, string(s.Confidence), details, s.AlgoVersion, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(row pgx.Row) (models.Snapshot, error) {
	var (
		s          models.Snapshot
		status     string
		confidence string
		details    []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.ListingID, &s.ASIN, &status, &s.NetImpact, &s.Sentiment,
		&s.Drivers, &confidence, &details, &s.AlgoVersion, &s.CreatedAt); err != nil {
		return s, err
	}
	s.Status = models.Status(status)
	s.Confidence = models.Confidence(confidence)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &s.Details); err != nil {
			return s, fmt.Errorf("failed to decode snapshot details: %w", err)
		}
	}
	if s.Drivers == nil {
		s.Drivers = []string{}
	}
	return s, nil
}

// ListSnapshots returns the user's snapshots, newest first
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, userID string, f models.SnapshotFilter) ([]models.Snapshot, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	if f.ASIN != "" {
		args = append(args, f.ASIN)
		where = append(where, fmt.Sprintf("asin = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM listing_snapshots WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		snapshotColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// GetSnapshot returns one of the user's snapshots or ErrNotFound
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, userID, id string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM listing_snapshots WHERE user_id = $1 AND id = $2`

	s, err := scanSnapshot(r.pool.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// UpsertDailyRollup adds one snapshot's counters to its day row and folds its
// net impact into the running average
func (r *SnapshotRepository) UpsertDailyRollup(ctx context.Context, d models.DailyRollup) error {
	query := `
		INSERT INTO daily_rollups (user_id, asin, day, better, worse, stable, net_impact_avg)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, asin, day) DO UPDATE SET
			net_impact_avg = (daily_rollups.net_impact_avg * (daily_rollups.better + daily_rollups.worse + daily_rollups.stable)
				+ EXCLUDED.net_impact_avg) / (daily_rollups.better + daily_rollups.worse + daily_rollups.stable + 1),
			better = daily_rollups.better + EXCLUDED.better,
			worse  = daily_rollups.worse + EXCLUDED.worse,
			stable = daily_rollups.stable + EXCLUDED.stable`

	_, err := r.pool.Exec(ctx, query, d.UserID, d.ASIN, d.Date, d.Better, d.Worse, d.Stable, d.NetImpact)
	if err != nil {
		return fmt.Errorf("failed to upsert daily rollup: %w", err)
	}
	return nil
}
