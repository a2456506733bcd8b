package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	domsvc "LiqSweep/internal/domain/service"
	"LiqSweep/internal/services/bos"
	"LiqSweep/internal/services/risk"
	"LiqSweep/internal/services/session"
	"LiqSweep/internal/services/sweep"
	"LiqSweep/internal/services/takeprofit"
	"LiqSweep/internal/services/trend"
	"LiqSweep/pkg/logger"
)

// ErrNoBars is returned by views that need history before any bar arrived.
var ErrNoBars = errors.New("no bars available")

// BarSource hands out read-only snapshots of both timeframes.
type BarSource interface {
	Series() (structure, confirmation models.BarSeries)
}

// EngineConfig holds the decision settings of one instrument.
type EngineConfig struct {
	Symbol             string
	FractalPeriod      int
	RiskPercent        float64
	Band               takeprofit.Band
	MaxBOSDistancePips float64
	Stop               StopConfig
	Trend              trend.Config
}

// Orchestrator evaluates one instrument per price update. All mutable state
// lives in its EngineContext and is touched only under mu.
type Orchestrator struct {
	mu       sync.Mutex
	cfg      EngineConfig
	cal      *session.Calendar
	ec       *EngineContext
	bars     BarSource
	accounts domsvc.AccountProvider
	exec     domsvc.Executor
	events   domsvc.EventSink
	state    domrepo.StateStore
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewOrchestrator(
	cfg EngineConfig,
	cal *session.Calendar,
	bars BarSource,
	accounts domsvc.AccountProvider,
	exec domsvc.Executor,
	events domsvc.EventSink,
	state domrepo.StateStore,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		cal:      cal,
		ec:       NewEngineContext(cfg.FractalPeriod),
		bars:     bars,
		accounts: accounts,
		exec:     exec,
		events:   events,
		state:    state,
		metrics:  metrics,
		log:      log.With(logger.String("component", "orchestrator"), logger.String("symbol", cfg.Symbol)),
		now:      time.Now,
	}
}

// Start restores the persisted day state so a restart cannot trade the same
// day twice.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.state == nil {
		return nil
	}
	st, err := o.state.Load(ctx, o.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("load day state: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ec.Init(st)
	if st != nil {
		o.log.Info("day state restored",
			logger.String("day", st.Day),
			logger.String("last_trade_day", st.LastTradeDay),
			logger.Int("levels", len(st.Levels)))
	}
	return nil
}

// Stop flushes the day state.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saveLocked(ctx)
}

// SetBiasMode switches between automatic classification and a fixed bias.
func (o *Orchestrator) SetBiasMode(m models.BiasMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Trend.Mode = m
}

// OnTick runs one evaluation for a price update. Gates that fail are reported
// as events and return (nil, nil); only a cancelled context or a registry
// fault yields an error. Ticks behind the last evaluated one are skipped so
// the context never moves back in time.
func (o *Orchestrator) OnTick(ctx context.Context, tick models.Tick) (*models.TradeProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordLatency("engine_tick", time.Since(start).Seconds())
		}
	}()
	day := o.cal.Day(tick.Time)
	if o.ec.Stale(tick.Time, day) {
		o.emit(ctx, models.EventStaleTick, tick.Time, 0, map[string]float64{
			"lag_seconds": o.ec.LastTick.Sub(tick.Time).Seconds(),
		}, day)
		return nil, nil
	}
	o.ec.LastTick = tick.Time

	dirty := false
	defer func() {
		if dirty {
			if err := o.saveLocked(ctx); err != nil {
				o.log.Warn("save day state", logger.Error(err))
			}
		}
		if o.metrics != nil {
			o.metrics.RecordLevels(o.ec.Registry.Counts())
		}
	}()

	if o.ec.Day != day {
		prev := o.ec.Day
		o.ec.ResetDay(day)
		dirty = true
		if prev != "" {
			o.emit(ctx, models.EventDayReset, tick.Time, 0, nil, prev+" -> "+day)
		}
	}

	if !o.cal.TradingAllowed(tick.Time) {
		o.emit(ctx, models.EventSessionClosed, tick.Time, 0, nil, "")
		return nil, nil
	}
	if o.ec.TradedToday() {
		o.emit(ctx, models.EventAlreadyTraded, tick.Time, 0, nil, "")
		return nil, nil
	}

	structure, confirmation := o.bars.Series()
	lastStructure, okS := structure.Last()
	lastConfirm, okC := confirmation.Last()
	if !okS || !okC {
		o.emit(ctx, models.EventNoBars, tick.Time, 0, nil, "")
		return nil, nil
	}
	if moved, err := o.ec.Reindex(confirmation); err != nil {
		return nil, err
	} else if moved {
		dirty = true
		o.log.Info("restored levels reindexed", logger.Int("last_index", confirmation.LastIndex()))
	}
	if lastStructure.OpenTime.After(o.ec.LastStructureBar) {
		o.ec.LastStructureBar = lastStructure.OpenTime
		o.emit(ctx, models.EventStructureBar, lastStructure.OpenTime, 0, map[string]float64{"close": lastStructure.Close}, "")
	}

	bias, votes := trend.Explain(structure.Bars, o.cfg.Trend)
	if bias == models.BiasNeutral {
		o.emit(ctx, models.EventNeutralBias, tick.Time, 0, map[string]float64{
			"bull_candles": float64(votes.Bullish),
			"bear_candles": float64(votes.Bearish),
			"move":         votes.Move,
		}, "")
		return nil, nil
	}

	reg := o.ec.Registry
	if !reg.Built(day) {
		levels := reg.Populate(structure.Bars, bias, o.cal, day, tick.Price)
		dirty = true
		o.emit(ctx, models.EventRegistryBuilt, tick.Time, 0, map[string]float64{"levels": float64(len(levels))}, bias.String())
		for _, l := range levels {
			o.emit(ctx, models.EventLevelFound, l.FormedAt, l.ID, map[string]float64{"price": l.Price}, l.Kind.String())
		}
	} else if reg.Bias() != bias {
		o.emit(ctx, models.EventBiasMismatch, tick.Time, 0, nil, fmt.Sprintf("registry %s, now %s", reg.Bias(), bias))
		return nil, nil
	}

	for _, l := range sweep.Detect(reg.InState(models.StateFound), lastConfirm, confirmation.LastIndex(), bias) {
		if err := reg.Put(l); err != nil {
			return nil, fmt.Errorf("store swept level: %w", err)
		}
		dirty = true
		o.emit(ctx, models.EventLevelSwept, l.SweptAt, l.ID, map[string]float64{
			"price":   l.Price,
			"extreme": l.SweepExtreme,
			"bos":     l.BOSLevel,
		}, "")
	}

	var (
		inst   models.Instrument
		acct   models.Account
		quoted bool
	)
	pip := o.cfg.Trend.PipSize
	for _, lvl := range reg.InState(models.StateSwept) {
		updated, res := bos.Check(lvl, confirmation, bias, o.cfg.MaxBOSDistancePips, pip)
		if res.Outcome == bos.Skipped {
			continue
		}
		// broker data is fetched before the level leaves Swept, so an outage
		// leaves it to be confirmed again on the next tick
		if res.Outcome == bos.Confirmed && !quoted {
			var err error
			if inst, acct, err = o.quote(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if o.metrics != nil {
					o.metrics.RecordError("broker")
				}
				o.log.Warn("broker lookup failed", logger.Int("level_id", int(lvl.ID)), logger.Error(err))
				o.emit(ctx, models.EventBrokerUnavailable, tick.Time, lvl.ID, nil, err.Error())
				return nil, nil
			}
			quoted = true
		}
		if updated != lvl {
			if err := reg.Put(updated); err != nil {
				return nil, fmt.Errorf("store level: %w", err)
			}
			dirty = true
		}
		switch res.Outcome {
		case bos.Invalidated:
			o.emit(ctx, models.EventBOSInvalidated, res.At, lvl.ID, map[string]float64{"excess_pips": res.ExcessPips, "max_pips": o.cfg.MaxBOSDistancePips}, "")
			continue
		case bos.Pending:
			continue
		}
		o.emit(ctx, models.EventBOSConfirmed, res.At, lvl.ID, map[string]float64{"entry": res.EntryPrice, "excess_pips": res.ExcessPips}, "")

		p := o.propose(ctx, tick, bias, updated, structure, inst, acct)
		if p == nil {
			continue
		}
		if err := o.exec.Submit(ctx, p); err != nil {
			if o.metrics != nil {
				o.metrics.RecordError("execution")
			}
			o.log.Error("submit proposal", logger.String("proposal_id", p.ID), logger.Error(err))
			o.emit(ctx, models.EventExecutionFailed, tick.Time, lvl.ID, nil, err.Error())
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		entered, err := updated.Enter()
		if err != nil {
			return nil, fmt.Errorf("mark entry: %w", err)
		}
		if err := reg.Put(entered); err != nil {
			return nil, fmt.Errorf("store level: %w", err)
		}
		o.ec.LastTradeDay = day
		o.ec.LastProposal = p
		dirty = true
		if o.metrics != nil {
			o.metrics.RecordProposal(p.Symbol, p.Direction.String())
		}
		o.emit(ctx, models.EventTradeProposed, tick.Time, lvl.ID, map[string]float64{
			"entry":    p.EntryPrice,
			"sl":       p.StopLossPrice,
			"tp":       p.TakeProfitPrice,
			"quantity": p.Quantity,
			"rr":       p.RewardRisk,
		}, p.Label)
		return p, nil
	}
	return nil, nil
}

// quote loads instrument metadata and the account balance.
func (o *Orchestrator) quote(ctx context.Context) (models.Instrument, models.Account, error) {
	inst, err := o.accounts.Instrument(ctx, o.cfg.Symbol)
	if err != nil {
		return models.Instrument{}, models.Account{}, fmt.Errorf("instrument %s: %w", o.cfg.Symbol, err)
	}
	if inst.PipSize <= 0 {
		inst.PipSize = o.cfg.Trend.PipSize
	}
	acct, err := o.accounts.Account(ctx)
	if err != nil {
		return models.Instrument{}, models.Account{}, fmt.Errorf("account: %w", err)
	}
	return inst, acct, nil
}

// propose sizes a trade for a confirmed level. It returns nil when a gate
// rejects the trade.
func (o *Orchestrator) propose(ctx context.Context, tick models.Tick, bias models.Bias, lvl models.LiquidityLevel, structure models.BarSeries, inst models.Instrument, acct models.Account) *models.TradeProposal {
	dir, ok := bias.Direction()
	if !ok {
		return nil
	}
	entry := lvl.EntryPrice

	stop, err := planStop(dir, entry, lvl, inst, o.cfg.Stop)
	if err != nil {
		o.emit(ctx, models.EventStopRejected, tick.Time, lvl.ID, map[string]float64{"sl": stop.Price, "sl_pips": stop.Pips}, err.Error())
		return nil
	}
	if stop.Adjusted {
		o.emit(ctx, models.EventStopAdjusted, tick.Time, lvl.ID, map[string]float64{"sl": stop.Price, "sl_pips": stop.Pips}, "")
	}

	stopDistance := math.Abs(entry - stop.Price)
	sel, ok := takeprofit.Select(dir, entry, stopDistance, structure.Bars, o.cfg.FractalPeriod, o.cfg.Band)
	if !ok {
		values := map[string]float64{"candidates": float64(sel.Candidates)}
		if sel.HasCandidate {
			values["nearest_rr"] = sel.NearestRatio
		}
		o.emit(ctx, models.EventTakeProfitMissing, tick.Time, lvl.ID, values, "")
		return nil
	}
	tp := inst.Round(sel.Price)
	tpPips := inst.Pips(math.Abs(tp - entry))
	if (tp-entry)*dir.Sign() <= 0 || (inst.MinTakeProfitPips > 0 && tpPips < inst.MinTakeProfitPips) {
		o.emit(ctx, models.EventTakeProfitRejected, tick.Time, lvl.ID, map[string]float64{"tp": tp, "tp_pips": tpPips}, "")
		return nil
	}

	qty, err := risk.Size(risk.Params{
		Balance:      acct.Balance,
		RiskPercent:  o.cfg.RiskPercent,
		StopLossPips: stop.Pips,
		PipValue:     inst.PipValue,
		VolumeStep:   inst.VolumeStep,
		VolumeMin:    inst.VolumeMin,
		VolumeMax:    inst.VolumeMax,
	})
	if err != nil {
		o.emit(ctx, models.EventSizeRejected, tick.Time, lvl.ID, map[string]float64{"balance": acct.Balance, "sl_pips": stop.Pips}, err.Error())
		return nil
	}

	return &models.TradeProposal{
		ID:              uuid.NewString(),
		Symbol:          o.cfg.Symbol,
		Direction:       dir,
		EntryPrice:      entry,
		StopLossPrice:   stop.Price,
		TakeProfitPrice: tp,
		Quantity:        qty,
		RewardRisk:      sel.Ratio,
		StopLossPips:    stop.Pips,
		LevelID:         lvl.ID,
		LevelPrice:      lvl.Price,
		Label:           models.ProposalLabel(dir, tick.Time),
		CreatedAt:       tick.Time,
	}
}

func (o *Orchestrator) emit(ctx context.Context, kind models.EventKind, at time.Time, id models.LevelID, values map[string]float64, note string) {
	if o.events == nil {
		return
	}
	o.events.Emit(ctx, models.Event{
		Kind:    kind,
		Level:   kind.Severity(),
		Symbol:  o.cfg.Symbol,
		At:      at,
		LevelID: id,
		Values:  values,
		Note:    note,
	})
}

func (o *Orchestrator) saveLocked(ctx context.Context) error {
	if o.state == nil {
		return nil
	}
	return o.state.Save(ctx, o.ec.State(o.cfg.Symbol, o.now()))
}

// EngineView is a read-only snapshot for the HTTP API.
type EngineView struct {
	Symbol        string                  `json:"symbol"`
	Day           string                  `json:"day"`
	TradedToday   bool                    `json:"traded_today"`
	BiasMode      models.BiasMode         `json:"bias_mode"`
	RegistryDay   string                  `json:"registry_day"`
	RegistryBias  models.Bias             `json:"registry_bias"`
	Levels        []models.LiquidityLevel `json:"levels"`
	LevelCounts   map[string]int          `json:"level_counts"`
	LastProposal  *models.TradeProposal   `json:"last_proposal,omitempty"`
	LastStructure time.Time               `json:"last_structure_bar"`
}

// View returns the current engine state.
func (o *Orchestrator) View() EngineView {
	o.mu.Lock()
	defer o.mu.Unlock()
	mode := o.cfg.Trend.Mode
	if mode == "" {
		mode = models.BiasModeAuto
	}
	return EngineView{
		Symbol:        o.cfg.Symbol,
		Day:           o.ec.Day,
		TradedToday:   o.ec.TradedToday(),
		BiasMode:      mode,
		RegistryDay:   o.ec.Registry.Day(),
		RegistryBias:  o.ec.Registry.Bias(),
		Levels:        o.ec.Registry.Levels(),
		LevelCounts:   o.ec.Registry.Counts(),
		LastProposal:  o.ec.LastProposal,
		LastStructure: o.ec.LastStructureBar,
	}
}

// BiasView is the classifier's verdict on the latest n structure bars.
type BiasView struct {
	Bias  models.Bias `json:"bias"`
	Bars  int         `json:"bars"`
	Votes trend.Votes `json:"votes"`
}

// CurrentBias classifies the newest n structure bars with the active settings.
func (o *Orchestrator) CurrentBias(n int) (BiasView, error) {
	structure, _ := o.bars.Series()
	if structure.Len() == 0 {
		return BiasView{}, ErrNoBars
	}
	o.mu.Lock()
	cfg := o.cfg.Trend
	o.mu.Unlock()
	bars := structure.Tail(n)
	b, v := trend.Explain(bars, cfg)
	return BiasView{Bias: b, Bars: len(bars), Votes: v}, nil
}
