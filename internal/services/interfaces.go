package services

import (
	"context"
	"time"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// SampleReader returns a listing's samples in [from, to) ordered by timestamp
type SampleReader interface {
	GetSamples(ctx context.Context, listingID int64, from, to time.Time) ([]models.Sample, error)
}

// ListingCatalog lists the listings a user tracks
type ListingCatalog interface {
	ListTrackedListings(ctx context.Context, userID string) ([]models.Listing, error)
}

// UserDirectory lists users and their personalised weights
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// GetDriverWeights returns nil when the user has no override
	GetDriverWeights(ctx context.Context, userID string) (*models.DriverWeights, error)
}

// SnapshotStore is the insert-only snapshot sink plus the rollup upsert
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s *models.Snapshot) error
	UpsertDailyRollup(ctx context.Context, r models.DailyRollup) error
}

// FeedbackLedgerStore loads and mutates a user's feedback ledger
type FeedbackLedgerStore interface {
	Load(ctx context.Context, userID string) (*models.FeedbackLedger, error)
	Record(ctx context.Context, userID string, s models.Snapshot, sign models.FeedbackSign) error
}

// DigestSender delivers ranked notifications to a user
type DigestSender interface {
	SendDigest(ctx context.Context, user models.User, candidates []models.RankedCandidate) error
}
