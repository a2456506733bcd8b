// Package trend derives the directional bias of the structure timeframe.
package trend

import (
	"math"

	"LiqSweep/internal/domain/models"
)

// Config selects and tunes the voting heuristics.
type Config struct {
	Mode    models.BiasMode
	PipSize float64
	// MinBars is a hard floor on history regardless of the enabled lookbacks.
	MinBars int

	CandleEnabled   bool
	CandleLookback  int
	CandleThreshold int

	ImpulseEnabled  bool
	ImpulseLookback int
	ImpulsePips     float64

	StructureEnabled       bool
	StructureLookback      int
	StructureConfirmations int
}

// DefaultConfig returns the stock heuristic settings for a 4/5-digit FX pair.
func DefaultConfig() Config {
	return Config{
		Mode:                   models.BiasModeAuto,
		PipSize:                0.0001,
		CandleEnabled:          true,
		CandleLookback:         25,
		CandleThreshold:        5,
		ImpulseEnabled:         true,
		ImpulseLookback:        5,
		ImpulsePips:            40,
		StructureEnabled:       true,
		StructureLookback:      10,
		StructureConfirmations: 2,
	}
}

// Votes is the per-heuristic breakdown behind a classification.
type Votes struct {
	CandleBull, CandleBear       bool
	ImpulseBull, ImpulseBear     bool
	StructureBull, StructureBear bool
	Bullish, Bearish             int
	Move                         float64
	HigherHighs, HigherLows      int
	LowerLows, LowerHighs        int
}

// Classify returns the bias for bars, oldest first.
func Classify(bars []models.Bar, cfg Config) models.Bias {
	b, _ := Explain(bars, cfg)
	return b
}

// Explain classifies bars and also returns the vote breakdown.
func Explain(bars []models.Bar, cfg Config) (models.Bias, Votes) {
	var v Votes
	if fixed, ok := cfg.Mode.Fixed(); ok {
		return fixed, v
	}
	if len(bars) == 0 || len(bars) < required(cfg) {
		return models.BiasNeutral, v
	}

	if cfg.CandleEnabled {
		for _, b := range bars[len(bars)-cfg.CandleLookback:] {
			switch {
			case b.IsBullish():
				v.Bullish++
			case b.IsBearish():
				v.Bearish++
			}
		}
		v.CandleBull = v.Bullish > v.Bearish+cfg.CandleThreshold
		v.CandleBear = v.Bearish > v.Bullish+cfg.CandleThreshold
	}

	if cfg.ImpulseEnabled {
		last := len(bars) - 1
		v.Move = bars[last].Close - bars[last-cfg.ImpulseLookback].Close
		limit := cfg.PipSize * cfg.ImpulsePips
		if math.Abs(v.Move) > limit {
			v.ImpulseBull = v.Move > 0
			v.ImpulseBear = v.Move < 0
		}
	}

	if cfg.StructureEnabled {
		for i := len(bars) - cfg.StructureLookback; i < len(bars); i++ {
			cur, prev := bars[i], bars[i-1]
			if cur.High > prev.High {
				v.HigherHighs++
			}
			if cur.Low > prev.Low {
				v.HigherLows++
			}
			if cur.Low < prev.Low {
				v.LowerLows++
			}
			if cur.High < prev.High {
				v.LowerHighs++
			}
		}
		n := cfg.StructureConfirmations
		v.StructureBull = v.HigherHighs >= n && v.HigherLows >= n
		v.StructureBear = v.LowerLows >= n && v.LowerHighs >= n
	}

	bull := v.CandleBull || v.ImpulseBull || v.StructureBull
	bear := v.CandleBear || v.ImpulseBear || v.StructureBear
	switch {
	case bull && !bear:
		return models.BiasBullish, v
	case bear && !bull:
		return models.BiasBearish, v
	default:
		return models.BiasNeutral, v
	}
}

// required is the bar count the enabled heuristics need.
func required(cfg Config) int {
	n := cfg.MinBars
	if cfg.CandleEnabled && cfg.CandleLookback > n {
		n = cfg.CandleLookback
	}
	if cfg.ImpulseEnabled && cfg.ImpulseLookback+1 > n {
		n = cfg.ImpulseLookback + 1
	}
	if cfg.StructureEnabled && cfg.StructureLookback+1 > n {
		n = cfg.StructureLookback + 1
	}
	return n
}

// Required reports the minimum history Classify needs before voting.
func Required(cfg Config) int { return required(cfg) }
