package models

import "time"

// FeedbackSign is the user's verdict on a notification
type FeedbackSign string

const (
	FeedbackPositive FeedbackSign = "positive"
	FeedbackNegative FeedbackSign = "negative"
)

// Tally counts helpful and not-helpful votes for one key
type Tally struct {
	Pos int `json:"pos"`
	Neg int `json:"neg"`
}

// FeedbackLedger accumulates a user's feedback along three independent
// dimensions. Missing keys read as a zero tally.
type FeedbackLedger struct {
	Driver map[string]Tally `json:"driver"`
	ASIN   map[string]Tally `json:"asin"`
	Status map[string]Tally `json:"status"`
}

// NewFeedbackLedger returns an empty ledger
func NewFeedbackLedger() *FeedbackLedger {
	return &FeedbackLedger{
		Driver: make(map[string]Tally),
		ASIN:   make(map[string]Tally),
		Status: make(map[string]Tally),
	}
}

// FeedbackEvent is one durable feedback action
type FeedbackEvent struct {
	ID         int64        `json:"id" db:"id"`
	UserID     string       `json:"user_id" db:"user_id"`
	SnapshotID string       `json:"snapshot_id" db:"snapshot_id"`
	ASIN       string       `json:"asin" db:"asin"`
	Sign       FeedbackSign `json:"sign" db:"sign"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// RankedCandidate is a snapshot scored against the current ledger. Never persisted.
type RankedCandidate struct {
	Snapshot
	Score       int  `json:"score"`
	Recommended bool `json:"recommended"`
}

// FeedbackRequest is the body of a feedback submission
type FeedbackRequest struct {
	Sign FeedbackSign `json:"sign" binding:"required,oneof=positive negative"`
}

// Valid reports whether s is a known feedback sign
func (s FeedbackSign) Valid() bool {
	return s == FeedbackPositive || s == FeedbackNegative
}

// LedgerDimension names one axis of the feedback ledger
type LedgerDimension string

const (
	DimensionDriver LedgerDimension = "driver"
	DimensionASIN   LedgerDimension = "asin"
	DimensionStatus LedgerDimension = "status"
)

// LedgerVote is one tally a feedback action increments
type LedgerVote struct {
	Dimension LedgerDimension
	Key       string
}

// FeedbackVotes lists the tallies one feedback action on s increments:
// one per driver, then the asin, then the status
func FeedbackVotes(s Snapshot) []LedgerVote {
	votes := make([]LedgerVote, 0, len(s.Drivers)+2)
	for _, d := range s.Drivers {
		votes = append(votes, LedgerVote{Dimension: DimensionDriver, Key: d})
	}
	return append(votes,
		LedgerVote{Dimension: DimensionASIN, Key: s.ASIN},
		LedgerVote{Dimension: DimensionStatus, Key: string(s.Status)},
	)
}

// Tallies returns the map backing dim, allocating it when nil. Unknown
// dimensions return nil.
func (l *FeedbackLedger) Tallies(dim LedgerDimension) map[string]Tally {
	switch dim {
	case DimensionDriver:
		if l.Driver == nil {
			l.Driver = make(map[string]Tally)
		}
		return l.Driver
	case DimensionASIN:
		if l.ASIN == nil {
			l.ASIN = make(map[string]Tally)
		}
		return l.ASIN
	case DimensionStatus:
		if l.Status == nil {
			l.Status = make(map[string]Tally)
		}
		return l.Status
	}
	return nil
}
