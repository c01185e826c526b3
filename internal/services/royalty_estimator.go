package services

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Market is the KDP print-cost jurisdiction a marketplace belongs to
type Market string

const (
	MarketUS Market = "US"
	MarketEU Market = "EU"
	MarketUK Market = "UK"
)

// InteriorType selects the print-cost table
type InteriorType string

const (
	InteriorBlack         InteriorType = "black"
	InteriorStandardColor InteriorType = "standard_color"
	InteriorPremiumColor  InteriorType = "premium_color"
)

const (
	// publisherShare is KDP's fixed 60% paperback royalty rate.
	publisherShare = 0.60

	minPageCount     = 24
	maxPageCount     = 828
	defaultPageCount = 120
)

// printCost is a fixed per-book charge plus a per-page charge
type printCost struct {
	Fixed   float64
	PerPage float64
}

var printCostTable = map[Market]map[InteriorType]printCost{
	MarketUS: {
		InteriorBlack:         {Fixed: 1.00, PerPage: 0.012},
		InteriorStandardColor: {Fixed: 1.00, PerPage: 0.0255},
		InteriorPremiumColor:  {Fixed: 1.00, PerPage: 0.065},
	},
	MarketEU: {
		InteriorBlack:         {Fixed: 0.60, PerPage: 0.012},
		InteriorStandardColor: {Fixed: 0.60, PerPage: 0.0215},
		InteriorPremiumColor:  {Fixed: 0.60, PerPage: 0.060},
	},
	MarketUK: {
		InteriorBlack:         {Fixed: 0.85, PerPage: 0.010},
		InteriorStandardColor: {Fixed: 0.85, PerPage: 0.0195},
		InteriorPremiumColor:  {Fixed: 0.85, PerPage: 0.050},
	},
}

// vatRates holds the reduced book VAT rate per marketplace country
var vatRates = map[string]float64{
	"US": 0,
	"UK": 0,
	"GB": 0,
	"DE": 0.07,
	"FR": 0.055,
	"IT": 0.04,
	"ES": 0.04,
	"NL": 0.09,
}

var marketByCountry = map[string]Market{
	"US": MarketUS,
	"UK": MarketUK,
	"GB": MarketUK,
	"DE": MarketEU,
	"FR": MarketEU,
	"IT": MarketEU,
	"ES": MarketEU,
	"NL": MarketEU,
}

// RoyaltyInput is the full set of book attributes the estimator understands
type RoyaltyInput struct {
	Price     float64
	PageCount int
	Country   string
	Interior  InteriorType
}

// IncomeEstimate is an order-of-magnitude monthly income range derived from
// BSR. It is an estimate, not a forecast, and must be displayed as a range.
type IncomeEstimate struct {
	BSR        float64 `json:"bsr"`
	Bucket     string  `json:"bucket"`
	UnitsLow   int     `json:"units_low"`
	UnitsHigh  int     `json:"units_high"`
	Multiplier float64 `json:"multiplier"`
	IncomeLow  float64 `json:"income_low"`
	IncomeHigh float64 `json:"income_high"`
}

type bsrBucket struct {
	MaxBSR    float64
	Label     string
	UnitsLow  int
	UnitsHigh int
}

// bsrBuckets is ordered by MaxBSR; the last bucket is open ended.
var bsrBuckets = []bsrBucket{
	{MaxBSR: 500, Label: "<=500", UnitsLow: 2000, UnitsHigh: 4000},
	{MaxBSR: 1000, Label: "<=1000", UnitsLow: 1000, UnitsHigh: 2000},
	{MaxBSR: 5000, Label: "<=5000", UnitsLow: 300, UnitsHigh: 1000},
	{MaxBSR: 10000, Label: "<=10000", UnitsLow: 150, UnitsHigh: 300},
	{MaxBSR: 25000, Label: "<=25000", UnitsLow: 60, UnitsHigh: 150},
	{MaxBSR: 50000, Label: "<=50000", UnitsLow: 25, UnitsHigh: 60},
	{MaxBSR: 100000, Label: "<=100000", UnitsLow: 10, UnitsHigh: 25},
	{MaxBSR: math.Inf(1), Label: ">100000", UnitsLow: 0, UnitsHigh: 10},
}

// ResolveMarket maps a marketplace country code to its print-cost market.
// Unknown codes fall back to the EU table.
func ResolveMarket(country string) Market {
	if m, ok := marketByCountry[normalizeCountry(country)]; ok {
		return m
	}
	return MarketEU
}

// VATRate returns the book VAT rate for a country, 0 when unknown
func VATRate(country string) float64 {
	return vatRates[normalizeCountry(country)]
}

// ParseInteriorType maps free text to an InteriorType, defaulting to black ink
func ParseInteriorType(s string) InteriorType {
	switch InteriorType(strings.ToLower(strings.TrimSpace(s))) {
	case InteriorStandardColor:
		return InteriorStandardColor
	case InteriorPremiumColor:
		return InteriorPremiumColor
	default:
		return InteriorBlack
	}
}

// ClampPageCount applies the default for missing counts and KDP's legal bounds
func ClampPageCount(pageCount int) int {
	if pageCount <= 0 {
		pageCount = defaultPageCount
	}
	return int(Clamp(float64(pageCount), minPageCount, maxPageCount))
}

// EstimatePrintingCost returns the per-copy print cost for a market
func EstimatePrintingCost(pageCount int, market Market, interior InteriorType) float64 {
	table, ok := printCostTable[market]
	if !ok {
		table = printCostTable[MarketEU]
	}
	cost, ok := table[interior]
	if !ok {
		cost = table[InteriorBlack]
	}
	pages := ClampPageCount(pageCount)
	return roundTo(cost.Fixed+cost.PerPage*float64(pages), 2)
}

// EstimateRoyalty returns the black-ink per-copy royalty net of VAT and print cost
func EstimateRoyalty(price float64, pageCount int, country string) float64 {
	return EstimateRoyaltyFor(RoyaltyInput{
		Price:     price,
		PageCount: pageCount,
		Country:   country,
		Interior:  InteriorBlack,
	})
}

// EstimateRoyaltyFor returns the per-copy royalty for a fully specified book.
// Non-positive or non-finite prices yield 0.
func EstimateRoyaltyFor(in RoyaltyInput) float64 {
	if !isValidMetric(in.Price) {
		return 0
	}

	basePrice := in.Price
	if vat := VATRate(in.Country); vat > 0 {
		basePrice = in.Price / (1 + vat)
	}

	gross := publisherShare * basePrice
	printing := EstimatePrintingCost(in.PageCount, ResolveMarket(in.Country), in.Interior)

	return roundTo(math.Max(0, gross-printing), 2)
}

// EstimateIncomeFromBSR maps a BSR onto a monthly unit band and multiplies it
// by the per-copy royalty
func EstimateIncomeFromBSR(bsr float64, royalty float64) IncomeEstimate {
	if !isValidMetric(bsr) {
		return IncomeEstimate{}
	}
	if !isValidMetric(royalty) {
		royalty = 0
	}

	bucket := bsrBuckets[len(bsrBuckets)-1]
	for _, b := range bsrBuckets {
		if bsr <= b.MaxBSR {
			bucket = b
			break
		}
	}

	r := decimal.NewFromFloat(royalty)
	multiplier := float64(bucket.UnitsLow+bucket.UnitsHigh) / 2

	return IncomeEstimate{
		BSR:        bsr,
		Bucket:     bucket.Label,
		UnitsLow:   bucket.UnitsLow,
		UnitsHigh:  bucket.UnitsHigh,
		Multiplier: multiplier,
		IncomeLow:  r.Mul(decimal.NewFromInt(int64(bucket.UnitsLow))).Round(2).InexactFloat64(),
		IncomeHigh: r.Mul(decimal.NewFromInt(int64(bucket.UnitsHigh))).Round(2).InexactFloat64(),
	}
}

// Clamp bounds x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// roundTo rounds half away from zero using decimal arithmetic so that
// values such as 2.675 do not drift to 2.67.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// isValidMetric reports whether v is a real observation: finite and positive
func isValidMetric(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
