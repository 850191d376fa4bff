package model

import "time"

// Item is a stock-keeping unit tracked by quantity.
type Item struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Quantity   int        `json:"quantity"`
	Status     string     `json:"status"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Quality    string     `json:"quality,omitempty"`
	PhotoMime  string     `json:"photo_mime,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	Threshold int `json:"threshold,omitempty"`
}

// Item availability statuses.
const (
	ItemStatusAvailable  = "Available"
	ItemStatusLowStock   = "Low Stock"
	ItemStatusOutOfStock = "Out of Stock"
)

// DateLayout is the layout of calendar dates (expiration, due dates).
const DateLayout = "2006-01-02"

// DeriveItemStatus returns the availability status implied by quantity
// relative to the category threshold.
func DeriveItemStatus(quantity, threshold int) string {
	switch {
	case quantity <= 0:
		return ItemStatusOutOfStock
	case quantity <= threshold:
		return ItemStatusLowStock
	default:
		return ItemStatusAvailable
	}
}

// ParseDate parses a calendar date in DateLayout as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
