// Package sweep marks liquidity levels taken out by a confirmation bar.
package sweep

import "LiqSweep/internal/domain/models"

// Detect checks every Found level formed no later than bar against bar and
// returns updated copies of the levels it swept. Other levels are untouched.
func Detect(levels []models.LiquidityLevel, bar models.Bar, barIndex int, bias models.Bias) []models.LiquidityLevel {
	var out []models.LiquidityLevel
	for _, l := range levels {
		if l.State != models.StateFound || l.FormedAt.After(bar.OpenTime) {
			continue
		}
		var (
			extreme, bos float64
			hit          bool
		)
		switch bias {
		case models.BiasBullish:
			hit, extreme, bos = bar.Low < l.Price, bar.Low, bar.High
		case models.BiasBearish:
			hit, extreme, bos = bar.High > l.Price, bar.High, bar.Low
		}
		if !hit {
			continue
		}
		swept, err := l.Sweep(extreme, bos, bar.OpenTime, barIndex)
		if err != nil {
			continue
		}
		out = append(out, swept)
	}
	return out
}
