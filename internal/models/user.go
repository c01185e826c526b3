package models

import "time"

// User represents a KDP publisher account tracking listings
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	TelegramChatID *int64    `json:"telegram_chat_id" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// DriverWeights are the per-signal weights used by the net impact score.
// Defaults are 0.35/0.30/0.25/0.10; a user may override them.
type DriverWeights struct {
	Reviews float64 `json:"reviews" db:"reviews" binding:"gte=0"`
	BSR     float64 `json:"bsr" db:"bsr" binding:"gte=0"`
	Royalty float64 `json:"royalty" db:"royalty" binding:"gte=0"`
	Price   float64 `json:"price" db:"price" binding:"gte=0"`
}

// DefaultDriverWeights returns the stock weighting
func DefaultDriverWeights() DriverWeights {
	return DriverWeights{
		Reviews: 0.35,
		BSR:     0.30,
		Royalty: 0.25,
		Price:   0.10,
	}
}

// Sum returns the total of all four weights
func (w DriverWeights) Sum() float64 {
	return w.Reviews + w.BSR + w.Royalty + w.Price
}
