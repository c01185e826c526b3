package models

import "time"

// Status is the trajectory classification of a listing
type Status string

const (
	StatusBetter Status = "better"
	StatusWorse  Status = "worse"
	StatusStable Status = "stable"
)

// Sentiment returns the human label shown next to a status
func (s Status) Sentiment() string {
	switch s {
	case StatusBetter:
		return "positive"
	case StatusWorse:
		return "negative"
	default:
		return "neutral"
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusBetter || s == StatusWorse || s == StatusStable
}

// Confidence is the data-sufficiency tier of a snapshot
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// WindowAggregate summarises one time window of samples
type WindowAggregate struct {
	AvgBSR         float64 `json:"avg_bsr"`
	AvgPrice       float64 `json:"avg_price"`
	AvgRoyalty     float64 `json:"avg_royalty"`
	ReviewVelocity float64 `json:"review_velocity"`
	SampleCount    int     `json:"sample_count"`
	CoverageDays   int     `json:"coverage_days"`
}

// SnapshotDetails carries the inputs a snapshot was derived from
type SnapshotDetails struct {
	Prev         WindowAggregate `json:"prev"`
	Curr         WindowAggregate `json:"curr"`
	CoverageDays int             `json:"coverage_days"`
}

// Snapshot is the immutable output of one scoring run for one listing
type Snapshot struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	ListingID   int64           `json:"listing_id" db:"listing_id"`
	ASIN        string          `json:"asin" db:"asin"`
	Status      Status          `json:"status" db:"status"`
	NetImpact   float64         `json:"net_impact" db:"net_impact"`
	Sentiment   string          `json:"sentiment" db:"sentiment"`
	Drivers     []string        `json:"drivers" db:"drivers"`
	Confidence  Confidence      `json:"confidence" db:"confidence"`
	Details     SnapshotDetails `json:"details" db:"details"`
	AlgoVersion string          `json:"algo_version" db:"algo_version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// DailyRollup is the per user/asin/day counter row fed by each snapshot
type DailyRollup struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ASIN      string    `json:"asin" db:"asin"`
	Date      time.Time `json:"date" db:"day"`
	Better    int       `json:"better" db:"better"`
	Worse     int       `json:"worse" db:"worse"`
	Stable    int       `json:"stable" db:"stable"`
	NetImpact float64   `json:"net_impact_avg" db:"net_impact_avg"`
}

// SnapshotFilter narrows snapshot listing queries
type SnapshotFilter struct {
	ASIN   string
	Status Status
	Since  *time.Time
	Limit  int
}
