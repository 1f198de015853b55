package model

import "time"

// PricePoint is a single price observation for a holding.
type PricePoint struct {
	HoldingID string    `json:"holdingId"`
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
}

// PriceFunc looks up the price of a holding. The boolean is false when no
// usable price exists; callers value the holding at zero and flag it.
type PriceFunc func(holdingID string) (float64, bool)
