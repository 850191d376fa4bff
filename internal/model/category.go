package model

import "time"

// DefaultThreshold is the low-stock threshold of categories created without one.
const DefaultThreshold = 10

// Category groups items and carries their low-stock threshold.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Threshold int       `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemCount int `json:"item_count"`
}
