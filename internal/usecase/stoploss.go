package usecase

import (
	"errors"
	"math"

	"LiqSweep/internal/domain/models"
)

// StopAnchor selects the price the stop buffer is measured from.
type StopAnchor string

const (
	AnchorLevel        StopAnchor = "level"
	AnchorSweepExtreme StopAnchor = "sweep_extreme"
)

// minStopPips is the smallest stop the engine will ever submit.
const minStopPips = 0.1

var ErrStopTooClose = errors.New("stop loss too close to entry")

type StopConfig struct {
	Anchor     StopAnchor
	BufferPips float64
	// MinPips is the floor applied when the buffered stop is unusable.
	MinPips float64
}

// StopPlan is the computed protective stop.
type StopPlan struct {
	Price    float64
	Pips     float64
	Adjusted bool
}

// planStop places the stop BufferPips beyond the anchor on the losing side.
// A stop on the wrong side of entry, or nearer than the larger of MinPips and
// the broker minimum, is replaced by a stop max(MinPips, brokerMin+1) pips
// from entry.
func planStop(dir models.Direction, entry float64, level models.LiquidityLevel, inst models.Instrument, cfg StopConfig) (StopPlan, error) {
	pip := inst.PipSize
	anchor := level.Price
	if cfg.Anchor == AnchorSweepExtreme && level.HasSweep() {
		anchor = level.SweepExtreme
	}
	sign := dir.Sign()
	sl := inst.Round(anchor - sign*cfg.BufferPips*pip)
	dist := (entry - sl) * sign

	floor := math.Max(cfg.MinPips, inst.MinStopPips)
	var plan StopPlan
	if dist <= 0 || dist/pip < floor {
		fallback := math.Max(cfg.MinPips, inst.MinStopPips+1)
		sl = inst.Round(entry - sign*fallback*pip)
		plan.Adjusted = true
	}
	plan.Price = sl
	plan.Pips = math.Abs(entry-sl) / pip
	if plan.Pips < minStopPips {
		return plan, ErrStopTooClose
	}
	return plan, nil
}
