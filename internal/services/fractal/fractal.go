// Package fractal finds symmetric swing extremes in a bar slice.
package fractal

import "LiqSweep/internal/domain/models"

// DefaultPeriod is the number of bars required on each side of a swing.
const DefaultPeriod = 3

// Point is a swing extreme found at Index of the scanned slice.
type Point struct {
	Index int
	Price float64
	Bar   models.Bar
}

// Lows returns down-fractals: bars whose low is strictly below the lows of
// the period bars before and after them. Edge bars without a full window on
// both sides are never fractals.
func Lows(bars []models.Bar, period int) []Point {
	return scan(bars, period, func(b models.Bar) float64 { return b.Low }, func(a, b float64) bool { return a < b })
}

// Highs returns up-fractals, the mirror of Lows.
func Highs(bars []models.Bar, period int) []Point {
	return scan(bars, period, func(b models.Bar) float64 { return b.High }, func(a, b float64) bool { return a > b })
}

func scan(bars []models.Bar, period int, price func(models.Bar) float64, beats func(a, b float64) bool) []Point {
	if period < 1 {
		period = DefaultPeriod
	}
	var out []Point
	for i := period; i < len(bars)-period; i++ {
		p := price(bars[i])
		ok := true
		for k := 1; k <= period && ok; k++ {
			ok = beats(p, price(bars[i-k])) && beats(p, price(bars[i+k]))
		}
		if ok {
			out = append(out, Point{Index: i, Price: p, Bar: bars[i]})
		}
	}
	return out
}
