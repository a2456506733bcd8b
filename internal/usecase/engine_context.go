package usecase

import (
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/services/liquidity"
)

// EngineContext is the orchestrator's per-instrument state. It is created on
// start, reset on day rollover and flushed on stop.
type EngineContext struct {
	Day              string
	LastTradeDay     string
	LastStructureBar time.Time
	LastTick         time.Time
	LastProposal     *models.TradeProposal
	Registry         *liquidity.Registry

	// restored levels still carry series indices of the previous process
	restored bool
}

func NewEngineContext(fractalPeriod int) *EngineContext {
	return &EngineContext{Registry: liquidity.NewRegistry(fractalPeriod)}
}

// Init restores persisted state, if any.
func (c *EngineContext) Init(st *models.DayState) {
	if st == nil {
		return
	}
	c.Day = st.Day
	c.LastTradeDay = st.LastTradeDay
	c.LastTick = st.LastTickAt
	c.LastProposal = st.LastProposal
	if st.RegistryDay != "" {
		c.Registry.Restore(liquidity.Snapshot{
			Day:    st.RegistryDay,
			Bias:   st.RegistryBias,
			NextID: st.NextLevelID,
			Levels: st.Levels,
		})
		c.restored = len(st.Levels) > 0
	}
}

// Stale reports whether a tick at t on day is behind the last evaluated one.
func (c *EngineContext) Stale(t time.Time, day string) bool {
	if c.Day != "" && day < c.Day {
		return true
	}
	return !c.LastTick.IsZero() && t.Before(c.LastTick)
}

// Reindex binds restored swept levels to the live confirmation series by bar
// open time. It runs once after Init and reports whether anything changed.
func (c *EngineContext) Reindex(series models.BarSeries) (bool, error) {
	if !c.restored {
		return false, nil
	}
	c.restored = false
	changed := false
	for _, l := range c.Registry.InState(models.StateSwept) {
		r := l.Reindex(series)
		if r == l {
			continue
		}
		if err := c.Registry.Put(r); err != nil {
			return changed, fmt.Errorf("reindex level %d: %w", l.ID, err)
		}
		changed = true
	}
	return changed, nil
}

// ResetDay clears the registry for a new calendar day. The traded flag is
// day-keyed, so it lapses on its own.
func (c *EngineContext) ResetDay(day string) {
	c.Day = day
	c.Registry.Reset()
	c.restored = false
}

// TradedToday reports whether a proposal was delivered on the current day.
func (c *EngineContext) TradedToday() bool {
	return c.Day != "" && c.LastTradeDay == c.Day
}

// State builds the persistable form of the context.
func (c *EngineContext) State(symbol string, now time.Time) *models.DayState {
	snap := c.Registry.Snapshot()
	return &models.DayState{
		Symbol:       symbol,
		Day:          c.Day,
		LastTradeDay: c.LastTradeDay,
		LastTickAt:   c.LastTick,
		RegistryDay:  snap.Day,
		RegistryBias: snap.Bias,
		NextLevelID:  snap.NextID,
		Levels:       snap.Levels,
		LastProposal: c.LastProposal,
		UpdatedAt:    now,
	}
}
