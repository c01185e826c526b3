package services

import (
	"math"
	"sort"

	"github.com/irfndi/kdp-pulse/internal/models"
	"github.com/irfndi/kdp-pulse/internal/utils"
)

const (
	neutralScore        = 50.0
	RecommendThreshold  = 70
	driverFeedbackScale = 10.0
	asinFeedbackScale   = 8.0
	statusFeedbackScale = 6.0

	// negativeFeedbackWeight makes downvotes suppress a signal faster than
	// upvotes amplify it
	negativeFeedbackWeight = 1.2

	netImpactNudgeLimit = 10.0
	netImpactNudgeScale = 0.5
)

var confidenceWeights = map[models.Confidence]float64{
	models.ConfidenceHigh:   1.0,
	models.ConfidenceMedium: 0.7,
	models.ConfidenceLow:    0.5,
}

// RankOptions tunes scoring and filters the ranked output
type RankOptions struct {
	// NetImpactNudge adds a small bonus or penalty from the snapshot's net impact
	NetImpactNudge  bool
	RecommendedOnly bool
	Status          models.Status
	ASIN            string
	Limit           int
}

// RelevanceRanker scores snapshots against a user's feedback ledger
type RelevanceRanker struct {
	opts RankOptions
}

// NewRelevanceRanker creates a ranker with default scoring options
func NewRelevanceRanker(netImpactNudge bool) *RelevanceRanker {
	return &RelevanceRanker{opts: RankOptions{NetImpactNudge: netImpactNudge}}
}

// Options returns the ranker's base options, to be extended per request
func (r *RelevanceRanker) Options() RankOptions {
	return r.opts
}

// Score returns the 0-100 relevance of one snapshot under a ledger
func (r *RelevanceRanker) Score(s models.Snapshot, ledger *models.FeedbackLedger, nudge bool) int {
	if ledger == nil {
		ledger = models.NewFeedbackLedger()
	}

	var acc float64
	for _, d := range s.Drivers {
		acc += feedbackDiff(ledger.Driver[d]) * driverFeedbackScale
	}
	acc += feedbackDiff(ledger.ASIN[s.ASIN]) * asinFeedbackScale
	acc += feedbackDiff(ledger.Status[string(s.Status)]) * statusFeedbackScale

	weight, ok := confidenceWeights[s.Confidence]
	if !ok {
		weight = confidenceWeights[models.ConfidenceLow]
	}
	acc *= weight

	if nudge && isFinite(s.NetImpact) {
		acc += Clamp(s.NetImpact, -netImpactNudgeLimit, netImpactNudgeLimit) * netImpactNudgeScale
	}

	return int(Clamp(math.Round(neutralScore+acc), 0, 100))
}

// Rank scores every snapshot, sorts by recommended, score and recency, and
// applies the option filters. It never mutates the ledger.
func (r *RelevanceRanker) Rank(snapshots []models.Snapshot, ledger *models.FeedbackLedger, opts RankOptions) []models.RankedCandidate {
	ranked := make([]models.RankedCandidate, 0, len(snapshots))
	for _, s := range snapshots {
		score := r.Score(s, ledger, opts.NetImpactNudge)
		ranked = append(ranked, models.RankedCandidate{
			Snapshot:    s,
			Score:       score,
			Recommended: score >= RecommendThreshold,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Recommended != b.Recommended {
			return a.Recommended
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	filtered := ranked[:0]
	for _, c := range ranked {
		if opts.RecommendedOnly && !c.Recommended {
			continue
		}
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		if opts.ASIN != "" && c.ASIN != opts.ASIN {
			continue
		}
		filtered = append(filtered, c)
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

// RecordFeedback applies one user action to the ledger: every driver, the
// asin and the status of the snapshot get one vote of the given sign
func RecordFeedback(ledger *models.FeedbackLedger, s models.Snapshot, sign models.FeedbackSign) error {
	if ledger == nil {
		return utils.NewValidationError("feedback ledger is nil")
	}
	if !sign.Valid() {
		return utils.NewValidationErrorf("invalid feedback sign %q", sign)
	}
	for _, v := range models.FeedbackVotes(s) {
		tallies := ledger.Tallies(v.Dimension)
		tallies[v.Key] = vote(tallies[v.Key], sign)
	}
	return nil
}

func feedbackDiff(t models.Tally) float64 {
	return float64(t.Pos) - negativeFeedbackWeight*float64(t.Neg)
}

func vote(t models.Tally, sign models.FeedbackSign) models.Tally {
	if sign == models.FeedbackPositive {
		t.Pos++
	} else {
		t.Neg++
	}
	return t
}
