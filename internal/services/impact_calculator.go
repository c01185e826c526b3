package services

import (
	"math"

	"github.com/irfndi/kdp-pulse/internal/models"
)

const (
	// momEpsilon floors the baseline of MomPercent
	momEpsilon = 1e-6

	maxNetImpact = 300.0

	reviewVelocityThreshold = 0.1 // absolute reviews/day
	bsrThresholdPct         = 3.0
	royaltyThresholdPct     = 1.0
	priceThresholdPct       = 1.0

	// statusMomThresholdPct is the royalty move that must corroborate the drivers
	statusMomThresholdPct = 1.0
)

// Driver names stored on snapshots
const (
	DriverVelocityUp   = "Review velocity up"
	DriverVelocityDown = "Review velocity down"
	DriverBSRImproved  = "BSR improved"
	DriverBSRWorsened  = "BSR worsened"
	DriverRoyaltyUp    = "Royalty up"
	DriverRoyaltyDown  = "Royalty down"
	DriverPriceUp      = "Price up"
	DriverPriceDown    = "Price down"
)

// Changes are the raw per-signal movements between two windows.
// BSRDeltaPct is already negated so that a positive value is an improvement.
type Changes struct {
	ReviewVelocityDelta float64 `json:"rv_delta"`
	ReviewVelocityPrev  float64 `json:"rv_prev"`
	BSRDeltaPct         float64 `json:"bsr_delta_pct"`
	RoyaltyDeltaPct     float64 `json:"royalty_delta_pct"`
	PriceDeltaPct       float64 `json:"price_delta_pct"`
}

// ReviewVelocityPct expresses the velocity change relative to its own baseline
func (c Changes) ReviewVelocityPct() float64 {
	return MomPercent(c.ReviewVelocityPrev, c.ReviewVelocityPrev+c.ReviewVelocityDelta)
}

// ImpactResult is the outcome of comparing two windows
type ImpactResult struct {
	Drivers     []string      `json:"drivers"`
	DriverScore int           `json:"driver_score"`
	NetImpact   float64       `json:"net_impact"`
	MomPct      float64       `json:"mom_pct"`
	Status      models.Status `json:"status"`
	Changes     Changes       `json:"changes"`
}

// MomPercent is the percentage change from prev to curr with an epsilon
// floored denominator. Non-finite inputs yield 0.
func MomPercent(prev, curr float64) float64 {
	if !isFinite(prev) || !isFinite(curr) {
		return 0
	}
	return (curr - prev) / math.Max(math.Abs(prev), momEpsilon) * 100
}

// NormalizeWeights rescales weights to sum to 1. Negative or non-finite
// entries count as 0; a non-positive total falls back to the defaults.
func NormalizeWeights(w models.DriverWeights) models.DriverWeights {
	clean := func(v float64) float64 {
		if !isFinite(v) || v < 0 {
			return 0
		}
		return v
	}
	w = models.DriverWeights{
		Reviews: clean(w.Reviews),
		BSR:     clean(w.BSR),
		Royalty: clean(w.Royalty),
		Price:   clean(w.Price),
	}

	sum := w.Sum()
	if sum <= 0 {
		return models.DefaultDriverWeights()
	}
	if math.Abs(sum-1) < 1e-9 {
		return w
	}
	return models.DriverWeights{
		Reviews: w.Reviews / sum,
		BSR:     w.BSR / sum,
		Royalty: w.Royalty / sum,
		Price:   w.Price / sum,
	}
}

// WeightedNetImpact fuses the four percentage signals into one score
// clamped to [-300, 300]
func WeightedNetImpact(c Changes, weights models.DriverWeights) float64 {
	w := NormalizeWeights(weights)
	impact := w.Reviews*c.ReviewVelocityPct() +
		w.BSR*c.BSRDeltaPct +
		w.Royalty*c.RoyaltyDeltaPct +
		w.Price*c.PriceDeltaPct
	if !isFinite(impact) {
		impact = math.Copysign(maxNetImpact, impact)
	}
	return roundTo(Clamp(impact, -maxNetImpact, maxNetImpact), 2)
}

// ClassifyStatus requires both the driver tally and the royalty trend to agree
func ClassifyStatus(driverScore int, momPct float64) models.Status {
	switch {
	case driverScore > 0 && momPct > statusMomThresholdPct:
		return models.StatusBetter
	case driverScore < 0 && momPct < -statusMomThresholdPct:
		return models.StatusWorse
	default:
		return models.StatusStable
	}
}

// BothEmpty reports whether neither window retained a sample
func BothEmpty(prev, curr models.WindowAggregate) bool {
	return prev.SampleCount == 0 && curr.SampleCount == 0
}

// ComputeChanges derives per-signal movements. A percentage signal whose
// average is unobserved (0) on either side contributes no movement.
func ComputeChanges(prev, curr models.WindowAggregate) Changes {
	c := Changes{
		ReviewVelocityDelta: curr.ReviewVelocity - prev.ReviewVelocity,
		ReviewVelocityPrev:  prev.ReviewVelocity,
	}
	if observedPair(prev.AvgBSR, curr.AvgBSR) {
		c.BSRDeltaPct = -MomPercent(prev.AvgBSR, curr.AvgBSR)
	}
	if observedPair(prev.AvgRoyalty, curr.AvgRoyalty) {
		c.RoyaltyDeltaPct = MomPercent(prev.AvgRoyalty, curr.AvgRoyalty)
	}
	if observedPair(prev.AvgPrice, curr.AvgPrice) {
		c.PriceDeltaPct = MomPercent(prev.AvgPrice, curr.AvgPrice)
	}
	return c
}

// ComputeDriversAndImpact compares two windows and classifies the listing
func ComputeDriversAndImpact(prev, curr models.WindowAggregate, weights models.DriverWeights) ImpactResult {
	if BothEmpty(prev, curr) {
		return ImpactResult{
			Drivers: []string{},
			Status:  models.StatusStable,
		}
	}

	c := ComputeChanges(prev, curr)
	drivers := make([]string, 0, 4)
	score := 0

	emit := func(delta, threshold float64, up, down string) {
		if math.Abs(delta) < threshold {
			return
		}
		if delta > 0 {
			drivers = append(drivers, up)
			score++
		} else {
			drivers = append(drivers, down)
			score--
		}
	}

	emit(c.ReviewVelocityDelta, reviewVelocityThreshold, DriverVelocityUp, DriverVelocityDown)
	emit(c.BSRDeltaPct, bsrThresholdPct, DriverBSRImproved, DriverBSRWorsened)
	emit(c.RoyaltyDeltaPct, royaltyThresholdPct, DriverRoyaltyUp, DriverRoyaltyDown)
	// Price up is reported as a positive signal; the royalty gate decides
	// whether it actually paid off.
	emit(c.PriceDeltaPct, priceThresholdPct, DriverPriceUp, DriverPriceDown)

	momPct := c.RoyaltyDeltaPct
	return ImpactResult{
		Drivers:     drivers,
		DriverScore: score,
		NetImpact:   WeightedNetImpact(c, weights),
		MomPct:      momPct,
		Status:      ClassifyStatus(score, momPct),
		Changes:     c,
	}
}

func observedPair(prev, curr float64) bool {
	return isValidMetric(prev) && isValidMetric(curr)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
