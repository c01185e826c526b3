package services

import "github.com/irfndi/kdp-pulse/internal/models"

const (
	highConfidenceDays    = 14
	highConfidenceSamples = 50
	mediumConfidenceDays  = 7
)

// ConfidenceFrom grades how much history backs a snapshot
func ConfidenceFrom(coverageDays int, sampleCount int) models.Confidence {
	switch {
	case coverageDays >= highConfidenceDays && sampleCount >= highConfidenceSamples:
		return models.ConfidenceHigh
	case coverageDays >= mediumConfidenceDays:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// SnapshotConfidence grades a comparison using the current window's coverage.
// Two empty windows are always low confidence.
func SnapshotConfidence(prev, curr models.WindowAggregate) models.Confidence {
	if BothEmpty(prev, curr) {
		return models.ConfidenceLow
	}
	return ConfidenceFrom(curr.CoverageDays, curr.SampleCount)
}
