package models

import "math"

// Instrument holds the venue metadata the engine needs for one symbol.
type Instrument struct {
	Symbol            string  `json:"symbol"`
	PipSize           float64 `json:"pip_size"`
	Digits            int     `json:"digits"`
	PipValue          float64 `json:"pip_value"`
	VolumeMin         float64 `json:"volume_min"`
	VolumeMax         float64 `json:"volume_max"`
	VolumeStep        float64 `json:"volume_step"`
	MinStopPips       float64 `json:"min_stop_pips"`
	MinTakeProfitPips float64 `json:"min_take_profit_pips"`
}

// Round rounds a price to the instrument's quoted digits.
func (i Instrument) Round(price float64) float64 {
	if i.Digits <= 0 {
		return price
	}
	p := math.Pow(10, float64(i.Digits))
	return math.Round(price*p) / p
}

// Pips converts a price distance to pips.
func (i Instrument) Pips(distance float64) float64 {
	if i.PipSize == 0 {
		return 0
	}
	return distance / i.PipSize
}

// Account is the balance snapshot used for sizing.
type Account struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}
