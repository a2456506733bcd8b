// Package liquidity keeps the day's tracked liquidity levels.
//
// Levels live in an arena addressed by a stable LevelID. Callers read copies
// and write back updated records with Put; the registry never hands out
// pointers into its storage.
package liquidity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/services/fractal"
)

var ErrUnknownLevel = errors.New("unknown liquidity level")

// Window decides whether a structure bar belongs to a day's session window.
type Window interface {
	InWindow(t time.Time, day string) bool
}

// Snapshot is the persistable form of the registry.
type Snapshot struct {
	Day    string
	Bias   models.Bias
	NextID models.LevelID
	Levels []models.LiquidityLevel
}

// Registry is not safe for concurrent use; the orchestrator owns it under its
// own lock.
type Registry struct {
	period int
	day    string
	bias   models.Bias
	nextID models.LevelID
	levels []models.LiquidityLevel
	index  map[models.LevelID]int
}

func NewRegistry(period int) *Registry {
	if period < 1 {
		period = fractal.DefaultPeriod
	}
	return &Registry{period: period, nextID: 1, index: make(map[models.LevelID]int)}
}

// Populate discards all levels and rebuilds the set for day from the
// fractals of structure that formed inside the session window. Bullish bias
// keeps down-fractals, Bearish keeps up-fractals, Neutral keeps nothing.
// Levels are ordered nearest to currentPrice first.
func (r *Registry) Populate(structure []models.Bar, bias models.Bias, window Window, day string, currentPrice float64) []models.LiquidityLevel {
	r.Reset()
	r.day = day
	r.bias = bias

	var (
		points []fractal.Point
		kind   models.LevelKind
	)
	switch bias {
	case models.BiasBullish:
		points, kind = fractal.Lows(structure, r.period), models.LowFractal
	case models.BiasBearish:
		points, kind = fractal.Highs(structure, r.period), models.HighFractal
	default:
		return nil
	}

	for _, p := range points {
		if !window.InWindow(p.Bar.OpenTime, day) {
			continue
		}
		r.levels = append(r.levels, models.NewLevel(r.nextID, kind, p.Price, p.Bar.OpenTime))
		r.nextID++
	}
	sort.SliceStable(r.levels, func(i, j int) bool {
		return math.Abs(r.levels[i].Price-currentPrice) < math.Abs(r.levels[j].Price-currentPrice)
	})
	r.reindex()
	return r.Levels()
}

// Get returns a copy of the level with id.
func (r *Registry) Get(id models.LevelID) (models.LiquidityLevel, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.LiquidityLevel{}, false
	}
	return r.levels[i], true
}

// Put replaces the stored record with the same ID. A record whose state is
// behind the stored one is refused.
func (r *Registry) Put(l models.LiquidityLevel) error {
	i, ok := r.index[l.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, l.ID)
	}
	if l.State < r.levels[i].State {
		return fmt.Errorf("%w: level %d %s -> %s", models.ErrIllegalTransition, l.ID, r.levels[i].State, l.State)
	}
	r.levels[i] = l
	return nil
}

// Levels returns a copy of all levels in evaluation order.
func (r *Registry) Levels() []models.LiquidityLevel {
	out := make([]models.LiquidityLevel, len(r.levels))
	copy(out, r.levels)
	return out
}

// InState returns copies of the levels in state s, in evaluation order.
func (r *Registry) InState(s models.LevelState) []models.LiquidityLevel {
	var out []models.LiquidityLevel
	for _, l := range r.levels {
		if l.State == s {
			out = append(out, l)
		}
	}
	return out
}

// Counts returns the number of levels per state name.
func (r *Registry) Counts() map[string]int {
	out := make(map[string]int)
	for _, l := range r.levels {
		out[l.State.String()]++
	}
	return out
}

func (r *Registry) Day() string { return r.day }

func (r *Registry) Bias() models.Bias { return r.bias }

func (r *Registry) Len() int { return len(r.levels) }

// Built reports whether the registry holds a population for day. A population
// with no levels still counts once built.
func (r *Registry) Built(day string) bool { return r.day != "" && r.day == day }

// Reset drops every level. IDs keep increasing across resets.
func (r *Registry) Reset() {
	r.day = ""
	r.bias = models.BiasNeutral
	r.levels = nil
	r.index = make(map[models.LevelID]int)
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{Day: r.day, Bias: r.bias, NextID: r.nextID, Levels: r.Levels()}
}

// Restore replaces the registry contents with s.
func (r *Registry) Restore(s Snapshot) {
	r.Reset()
	r.day = s.Day
	r.bias = s.Bias
	r.levels = make([]models.LiquidityLevel, len(s.Levels))
	copy(r.levels, s.Levels)
	r.nextID = s.NextID
	for _, l := range r.levels {
		if l.ID >= r.nextID {
			r.nextID = l.ID + 1
		}
	}
	r.reindex()
}

func (r *Registry) reindex() {
	r.index = make(map[models.LevelID]int, len(r.levels))
	for i, l := range r.levels {
		r.index[l.ID] = i
	}
}
