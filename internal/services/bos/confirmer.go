// Package bos confirms a break of structure after a sweep.
package bos

import (
	"time"

	"LiqSweep/internal/domain/models"
)

// Outcome of one confirmation pass.
type Outcome int

const (
	Pending Outcome = iota
	Confirmed
	Invalidated
	// Skipped means the level was not in state Swept.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Invalidated:
		return "invalidated"
	default:
		return "skipped"
	}
}

// Result describes what a pass found.
type Result struct {
	Outcome    Outcome
	EntryPrice float64
	At         time.Time
	Index      int
	ExcessPips float64
	// Examined is the number of bars evaluated by this pass.
	Examined int
}

// pip distances are compared with this tolerance to absorb float noise.
const eps = 1e-9

// Check walks confirmation bars after the last scanned index looking for the
// first close beyond the level's BOS price. A break within maxDistancePips
// confirms the level with the close as entry; a wider break invalidates it.
// Without a break the scan position advances to the newest bar.
func Check(level models.LiquidityLevel, series models.BarSeries, bias models.Bias, maxDistancePips, pipSize float64) (models.LiquidityLevel, Result) {
	if level.State != models.StateSwept || pipSize <= 0 {
		return level, Result{Outcome: Skipped}
	}
	start := level.SweepIndex + 1
	if level.LastScannedIndex+1 > start {
		start = level.LastScannedIndex + 1
	}
	if series.FirstIndex() > start {
		start = series.FirstIndex()
	}
	last := series.LastIndex()
	if start > last {
		return level, Result{Outcome: Pending}
	}

	res := Result{Outcome: Pending}
	for i := start; i <= last; i++ {
		bar, _ := series.At(i)
		res.Examined++
		var excess float64
		switch bias {
		case models.BiasBullish:
			if bar.Close <= level.BOSLevel {
				continue
			}
			excess = (bar.Close - level.BOSLevel) / pipSize
		case models.BiasBearish:
			if bar.Close >= level.BOSLevel {
				continue
			}
			excess = (level.BOSLevel - bar.Close) / pipSize
		default:
			return level, Result{Outcome: Skipped}
		}

		res.At, res.Index, res.ExcessPips = bar.OpenTime, i, excess
		if excess <= maxDistancePips+eps {
			updated, err := level.Confirm(bar.Close, bar.OpenTime, i)
			if err != nil {
				return level, Result{Outcome: Skipped}
			}
			res.Outcome, res.EntryPrice = Confirmed, bar.Close
			return updated, res
		}
		updated, err := level.Invalidate(bar.OpenTime, i)
		if err != nil {
			return level, Result{Outcome: Skipped}
		}
		res.Outcome = Invalidated
		return updated, res
	}

	lastBar, _ := series.At(last)
	updated, err := level.Scanned(last, lastBar.OpenTime)
	if err != nil {
		return level, Result{Outcome: Skipped}
	}
	return updated, res
}
