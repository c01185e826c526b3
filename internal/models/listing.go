package models

import "time"

// Listing is a tracked Amazon KDP book (one ASIN in one marketplace)
type Listing struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ASIN      string    `json:"asin" db:"asin"`
	Country   string    `json:"country" db:"country"`
	Title     string    `json:"title" db:"title"`
	PageCount *int      `json:"page_count" db:"page_count"`
	Price     *float64  `json:"price" db:"price"`
	Interior  string    `json:"interior" db:"interior"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Sample is one scraped observation of a listing. Every numeric field is
// optional; zero or negative values are scraper placeholders, not real zeros.
type Sample struct {
	ListingID   int64     `json:"listing_id" db:"listing_id"`
	ASIN        string    `json:"asin" db:"asin"`
	Country     string    `json:"country" db:"country"`
	Timestamp   time.Time `json:"timestamp" db:"captured_at"`
	BSR         *float64  `json:"bsr,omitempty" db:"bsr"`
	Price       *float64  `json:"price,omitempty" db:"price"`
	ReviewCount *float64  `json:"review_count,omitempty" db:"review_count"`
}
