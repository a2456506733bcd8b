package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrIllegalTransition is returned when a level is asked to move backwards
// or skip a state.
var ErrIllegalTransition = errors.New("illegal level transition")

// LevelID addresses a level inside the registry arena.
type LevelID int

// LevelKind tells which swing extreme formed the level.
type LevelKind int

const (
	LowFractal LevelKind = iota + 1
	HighFractal
)

func (k LevelKind) String() string {
	switch k {
	case LowFractal:
		return "low"
	case HighFractal:
		return "high"
	default:
		return "unknown"
	}
}

func (k LevelKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *LevelKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*k = LowFractal
	case "high":
		*k = HighFractal
	default:
		return fmt.Errorf("unknown level kind %q", text)
	}
	return nil
}

// LevelState is the lifecycle stage of a liquidity level.
type LevelState int

const (
	StateFound LevelState = iota
	StateSwept
	StateConfirmed
	StateInvalidated
	StateEntryDone
)

var levelStateNames = [...]string{"found", "swept", "confirmed", "invalidated", "entry_done"}

func (s LevelState) String() string {
	if s < 0 || int(s) >= len(levelStateNames) {
		return "unknown"
	}
	return levelStateNames[s]
}

func (s LevelState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LevelState) UnmarshalText(text []byte) error {
	st, err := ParseLevelState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseLevelState parses the lowercase state name.
func ParseLevelState(s string) (LevelState, error) {
	for i, name := range levelStateNames {
		if strings.EqualFold(name, s) {
			return LevelState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown level state %q", s)
}

// LiquidityLevel is a session swing extreme tracked through
// Found -> Swept -> Confirmed|Invalidated -> EntryDone.
//
// SweepExtreme and BOSLevel are meaningful only once the level has been swept.
// Indices refer to absolute confirmation-series positions of the running
// process; -1 means unset. SweptAt and LastScannedAt carry the same positions
// as bar open times so a restored level can be reindexed with Reindex.
type LiquidityLevel struct {
	ID               LevelID    `json:"id"`
	Kind             LevelKind  `json:"kind"`
	Price            float64    `json:"price"`
	FormedAt         time.Time  `json:"formed_at"`
	State            LevelState `json:"state"`
	SweepExtreme     float64    `json:"sweep_extreme,omitempty"`
	BOSLevel         float64    `json:"bos_level,omitempty"`
	SweepIndex       int        `json:"sweep_index"`
	LastScannedIndex int        `json:"last_scanned_index"`
	SweptAt          time.Time  `json:"swept_at,omitempty"`
	LastScannedAt    time.Time  `json:"last_scanned_at,omitempty"`
	ResolvedAt       time.Time  `json:"resolved_at,omitempty"`
	EntryPrice       float64    `json:"entry_price,omitempty"`
}

// NewLevel creates a level in state Found.
func NewLevel(id LevelID, kind LevelKind, price float64, formedAt time.Time) LiquidityLevel {
	return LiquidityLevel{
		ID:               id,
		Kind:             kind,
		Price:            price,
		FormedAt:         formedAt,
		State:            StateFound,
		SweepIndex:       -1,
		LastScannedIndex: -1,
	}
}

// HasSweep reports whether sweep data (extreme and BOS level) is populated.
func (l LiquidityLevel) HasSweep() bool { return l.State != StateFound }

// IsTerminal reports whether the level can no longer produce an entry.
func (l LiquidityLevel) IsTerminal() bool {
	return l.State == StateInvalidated || l.State == StateEntryDone
}

// Sweep moves a Found level to Swept. The sweep bar itself counts as scanned.
func (l LiquidityLevel) Sweep(extreme, bosLevel float64, at time.Time, barIndex int) (LiquidityLevel, error) {
	if l.State != StateFound {
		return l, fmt.Errorf("%w: sweep from %s", ErrIllegalTransition, l.State)
	}
	l.State = StateSwept
	l.SweepExtreme = extreme
	l.BOSLevel = bosLevel
	l.SweepIndex = barIndex
	l.LastScannedIndex = barIndex
	l.SweptAt = at
	l.LastScannedAt = at
	return l, nil
}

// Scanned records that bars up to barIndex, opened at at, were examined
// without a break.
func (l LiquidityLevel) Scanned(barIndex int, at time.Time) (LiquidityLevel, error) {
	if l.State != StateSwept {
		return l, fmt.Errorf("%w: scan in %s", ErrIllegalTransition, l.State)
	}
	if barIndex <= l.LastScannedIndex {
		return l, fmt.Errorf("%w: scan index %d not after %d", ErrIllegalTransition, barIndex, l.LastScannedIndex)
	}
	l.LastScannedIndex = barIndex
	l.LastScannedAt = at
	return l, nil
}

// Confirm moves a Swept level to Confirmed with the break bar's close as entry.
func (l LiquidityLevel) Confirm(entry float64, at time.Time, barIndex int) (LiquidityLevel, error) {
	if l.State != StateSwept {
		return l, fmt.Errorf("%w: confirm from %s", ErrIllegalTransition, l.State)
	}
	l.State = StateConfirmed
	l.EntryPrice = entry
	l.ResolvedAt = at
	l.LastScannedIndex = barIndex
	l.LastScannedAt = at
	return l, nil
}

// Invalidate retires a Swept level whose break overshot the allowed distance.
func (l LiquidityLevel) Invalidate(at time.Time, barIndex int) (LiquidityLevel, error) {
	if l.State != StateSwept {
		return l, fmt.Errorf("%w: invalidate from %s", ErrIllegalTransition, l.State)
	}
	l.State = StateInvalidated
	l.ResolvedAt = at
	l.LastScannedIndex = barIndex
	l.LastScannedAt = at
	return l, nil
}

// Reindex maps the sweep and scan positions onto series by bar open time.
// A time older than the series start maps to the slot before its first bar,
// so the next scan resumes at the oldest bar still held.
func (l LiquidityLevel) Reindex(series BarSeries) LiquidityLevel {
	if !l.HasSweep() || l.SweptAt.IsZero() {
		return l
	}
	l.SweepIndex = series.IndexAt(l.SweptAt)
	scanned := l.LastScannedAt
	if scanned.Before(l.SweptAt) {
		scanned = l.SweptAt
	}
	l.LastScannedIndex = series.IndexAt(scanned)
	return l
}

// Enter marks a Confirmed level as spent by a delivered proposal.
func (l LiquidityLevel) Enter() (LiquidityLevel, error) {
	if l.State != StateConfirmed {
		return l, fmt.Errorf("%w: enter from %s", ErrIllegalTransition, l.State)
	}
	l.State = StateEntryDone
	return l, nil
}
