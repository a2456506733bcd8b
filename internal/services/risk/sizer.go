// Package risk converts a risk budget into a tradable quantity.
package risk

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrZeroStop means the stop distance or pip value is zero.
	ErrZeroStop = errors.New("risk: zero stop distance")
	// ErrBelowMinimum means the budget cannot buy the venue minimum.
	ErrBelowMinimum = errors.New("risk: quantity below venue minimum")
	ErrBadVolume    = errors.New("risk: invalid volume constraints")
)

// Params are the inputs of Size. PipValue is the account-currency value of
// one pip per traded unit.
type Params struct {
	Balance      float64
	RiskPercent  float64
	StopLossPips float64
	PipValue     float64
	VolumeStep   float64
	VolumeMin    float64
	VolumeMax    float64
}

// Validate checks the venue volume constraints.
func (p Params) Validate() error {
	if p.VolumeStep <= 0 || p.VolumeMin <= 0 || p.VolumeMax < p.VolumeMin {
		return fmt.Errorf("%w: step=%v min=%v max=%v", ErrBadVolume, p.VolumeStep, p.VolumeMin, p.VolumeMax)
	}
	if !onStep(p.VolumeMin, p.VolumeStep) || !onStep(p.VolumeMax, p.VolumeStep) {
		return fmt.Errorf("%w: min/max not multiples of step %v", ErrBadVolume, p.VolumeStep)
	}
	return nil
}

// RiskAmount is the account-currency amount put at risk.
func (p Params) RiskAmount() float64 { return p.Balance * p.RiskPercent / 100 }

// Size returns the quantity for p: the raw quantity floored to the volume
// step and clamped into [VolumeMin, VolumeMax]. A non-positive risk budget
// is rejected with ErrBelowMinimum and a zero stop with ErrZeroStop; both
// return 0.
func Size(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	denom := p.StopLossPips * p.PipValue
	if denom == 0 {
		return 0, ErrZeroStop
	}
	riskAmount := p.RiskAmount()
	if riskAmount <= 0 || denom < 0 {
		return 0, ErrBelowMinimum
	}
	raw := riskAmount / denom
	steps := math.Floor(raw/p.VolumeStep + 1e-9)
	qty := steps * p.VolumeStep
	qty = math.Max(p.VolumeMin, math.Min(p.VolumeMax, qty))
	if qty < p.VolumeMin || qty <= 0 {
		return 0, ErrBelowMinimum
	}
	return roundTo(qty, p.VolumeStep), nil
}

func onStep(v, step float64) bool {
	r := v / step
	return math.Abs(r-math.Round(r)) < 1e-9
}

// roundTo removes float residue from a multiple of step.
func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}
