package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// DefaultAlgoVersion tags snapshots produced by this scoring code
const DefaultAlgoVersion = "v2"

// SnapshotInput is everything needed to score one listing
type SnapshotInput struct {
	UserID      string
	Listing     models.Listing
	Samples     []models.Sample
	Prev        Window
	Curr        Window
	Weights     models.DriverWeights
	AlgoVersion string
	Now         time.Time
}

// BuildSnapshot runs aggregation, driver/impact and confidence over one
// listing's samples and returns a new immutable snapshot
func BuildSnapshot(in SnapshotInput) models.Snapshot {
	prev := AggregateWindow(in.Samples, in.Prev, &in.Listing)
	curr := AggregateWindow(in.Samples, in.Curr, &in.Listing)
	return BuildSnapshotFromAggregates(in, prev, curr)
}

// BuildSnapshotFromAggregates is BuildSnapshot for callers that already
// aggregated both windows
func BuildSnapshotFromAggregates(in SnapshotInput, prev, curr models.WindowAggregate) models.Snapshot {
	impact := ComputeDriversAndImpact(prev, curr, in.Weights)

	version := in.AlgoVersion
	if version == "" {
		version = DefaultAlgoVersion
	}
	createdAt := in.Now
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return models.Snapshot{
		ID:         uuid.New().String(),
		UserID:     in.UserID,
		ListingID:  in.Listing.ID,
		ASIN:       in.Listing.ASIN,
		Status:     impact.Status,
		NetImpact:  impact.NetImpact,
		Sentiment:  impact.Status.Sentiment(),
		Drivers:    impact.Drivers,
		Confidence: SnapshotConfidence(prev, curr),
		Details: models.SnapshotDetails{
			Prev:         prev,
			Curr:         curr,
			CoverageDays: curr.CoverageDays,
		},
		AlgoVersion: version,
		CreatedAt:   createdAt.UTC(),
	}
}

// BuildDailyRollup turns a snapshot into the increment for its day's rollup row
func BuildDailyRollup(s models.Snapshot) models.DailyRollup {
	t := s.CreatedAt.UTC()
	r := models.DailyRollup{
		UserID:    s.UserID,
		ASIN:      s.ASIN,
		Date:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		NetImpact: s.NetImpact,
	}
	switch s.Status {
	case models.StatusBetter:
		r.Better = 1
	case models.StatusWorse:
		r.Worse = 1
	default:
		r.Stable = 1
	}
	return r
}
