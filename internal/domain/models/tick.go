package models

import "time"

// Tick is a single price update for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}
