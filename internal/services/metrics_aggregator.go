package services

import (
	"math"
	"sort"
	"time"

	"github.com/irfndi/kdp-pulse/internal/models"
)

const oneDay = 24 * time.Hour

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// NominalDays is the configured length of the window in whole days
func (w Window) NominalDays() int {
	d := int(math.Round(w.End.Sub(w.Start).Hours() / 24))
	if d < 1 {
		return 1
	}
	return d
}

// ComparisonWindows returns the previous and current windows of the given
// length ending at now
func ComparisonWindows(now time.Time, windowDays int) (prev Window, curr Window) {
	if windowDays <= 0 {
		windowDays = 30
	}
	length := time.Duration(windowDays) * oneDay
	curr = Window{Start: now.Add(-length), End: now}
	prev = Window{Start: now.Add(-2 * length), End: curr.Start}
	return prev, curr
}

// DaysBetween returns the absolute distance between two instants in fractional days
func DaysBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours()) / 24
}

// ReviewVelocity returns reviews per day, treating spans under a day as one day
func ReviewVelocity(deltaReviews float64, days float64) float64 {
	return deltaReviews / math.Max(1, days)
}

// HasObservation reports whether a sample carries at least one usable metric
func HasObservation(s models.Sample) bool {
	return validPtr(s.BSR) || validPtr(s.Price) || validPtr(s.ReviewCount)
}

// AggregateWindow summarises the samples falling inside a window. Samples with
// no usable metric are dropped; missing fields are left out of their own
// average only. listing supplies fallback price, page count and country for
// the royalty estimate and may be nil.
func AggregateWindow(samples []models.Sample, window Window, listing *models.Listing) models.WindowAggregate {
	retained := make([]models.Sample, 0, len(samples))
	for _, s := range samples {
		if window.Contains(s.Timestamp) && HasObservation(s) {
			retained = append(retained, s)
		}
	}
	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Timestamp.Before(retained[j].Timestamp)
	})

	agg := models.WindowAggregate{
		SampleCount:  len(retained),
		CoverageDays: window.NominalDays(),
	}
	if len(retained) == 0 {
		return agg
	}

	var bsr, price, royalty runningMean
	var firstReview, lastReview *models.Sample
	for i := range retained {
		s := &retained[i]
		if validPtr(s.BSR) {
			bsr.add(*s.BSR)
		}
		if validPtr(s.Price) {
			price.add(*s.Price)
		}
		if validPtr(s.ReviewCount) {
			if firstReview == nil {
				firstReview = s
			}
			lastReview = s
		}
		if r, ok := sampleRoyalty(*s, listing); ok {
			royalty.add(r)
		}
	}

	agg.AvgBSR = math.Round(bsr.value())
	agg.AvgPrice = roundTo(price.value(), 2)
	agg.AvgRoyalty = roundTo(royalty.value(), 2)

	if firstReview != nil && lastReview != nil {
		agg.ReviewVelocity = ReviewVelocity(
			*lastReview.ReviewCount-*firstReview.ReviewCount,
			DaysBetween(lastReview.Timestamp, firstReview.Timestamp),
		)
	}

	// nearest whole day, so 13.9 days of data counts as 14
	coverage := int(math.Round(DaysBetween(retained[len(retained)-1].Timestamp, retained[0].Timestamp)))
	if coverage < 1 {
		coverage = 1
	}
	agg.CoverageDays = coverage

	return agg
}

// sampleRoyalty estimates one sample's royalty, falling back to the listing
// for price, page count and country
func sampleRoyalty(s models.Sample, listing *models.Listing) (float64, bool) {
	in := RoyaltyInput{Country: s.Country, Interior: InteriorBlack}
	if validPtr(s.Price) {
		in.Price = *s.Price
	}
	if listing != nil {
		if in.Price == 0 && listing.Price != nil && isValidMetric(*listing.Price) {
			in.Price = *listing.Price
		}
		if listing.PageCount != nil {
			in.PageCount = *listing.PageCount
		}
		if in.Country == "" {
			in.Country = listing.Country
		}
		in.Interior = ParseInteriorType(listing.Interior)
	}
	if in.Price == 0 {
		return 0, false
	}
	return EstimateRoyaltyFor(in), true
}

func validPtr(v *float64) bool {
	return v != nil && isValidMetric(*v)
}

type runningMean struct {
	sum float64
	n   int
}

func (m *runningMean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *runningMean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}
