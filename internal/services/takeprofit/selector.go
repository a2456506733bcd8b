// Package takeprofit picks a structural target inside a reward:risk band.
package takeprofit

import (
	"math"
	"sort"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/services/fractal"
)

// Selection is the chosen target, or diagnostics when none qualified.
type Selection struct {
	Price        float64
	Ratio        float64
	HasCandidate bool
	NearestRatio float64
	Candidates   int
}

// Band is the accepted reward:risk interval.
type Band struct {
	MinRR float64
	MaxRR float64
}

func (b Band) Contains(r float64) bool { return r >= b.MinRR && r <= b.MaxRR }

// Select returns the nearest swing beyond entry whose distance over
// stopDistance lies in band. Buys target up-fractals above entry and sells
// target down-fractals below it. When nothing qualifies, ok is false and the
// selection carries the nearest candidate's ratio.
func Select(direction models.Direction, entry, stopDistance float64, structure []models.Bar, period int, band Band) (Selection, bool) {
	var sel Selection
	if stopDistance <= 0 {
		return sel, false
	}

	var points []fractal.Point
	switch direction {
	case models.Buy:
		points = fractal.Highs(structure, period)
	case models.Sell:
		points = fractal.Lows(structure, period)
	default:
		return sel, false
	}

	prices := make([]float64, 0, len(points))
	for _, p := range points {
		if (direction == models.Buy && p.Price > entry) || (direction == models.Sell && p.Price < entry) {
			prices = append(prices, p.Price)
		}
	}
	sort.SliceStable(prices, func(i, j int) bool {
		return math.Abs(prices[i]-entry) < math.Abs(prices[j]-entry)
	})

	sel.Candidates = len(prices)
	for i, p := range prices {
		ratio := math.Abs(p-entry) / stopDistance
		if i == 0 {
			sel.HasCandidate, sel.NearestRatio = true, ratio
		}
		if band.Contains(ratio) {
			sel.Price, sel.Ratio = p, ratio
			return sel, true
		}
	}
	return sel, false
}
