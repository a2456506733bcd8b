package usecase

import (
	"context"
	"fmt"
	"sync"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	"LiqSweep/internal/services/bars"
	"LiqSweep/pkg/logger"
)

// MarketData owns the structure and confirmation series of one symbol. Ticks
// are folded into bars; closed bars are appended and persisted.
type MarketData struct {
	mu           sync.RWMutex
	symbol       string
	structureTF  domrepo.Timeframe
	confirmTF    domrepo.Timeframe
	structure    *bars.Series
	confirmation *bars.Series
	aggStructure *bars.Aggregator
	aggConfirm   *bars.Aggregator
	store        domrepo.BarStore
	log          *logger.Logger
}

type MarketDataConfig struct {
	Symbol              string
	StructureTF         domrepo.Timeframe
	ConfirmationTF      domrepo.Timeframe
	StructureHistory    int
	ConfirmationHistory int
}

// NewMarketData creates the feed. store may be nil.
func NewMarketData(cfg MarketDataConfig, store domrepo.BarStore, log *logger.Logger) *MarketData {
	if log == nil {
		log = logger.Nop()
	}
	return &MarketData{
		symbol:       cfg.Symbol,
		structureTF:  cfg.StructureTF,
		confirmTF:    cfg.ConfirmationTF,
		structure:    bars.NewSeries(cfg.StructureHistory),
		confirmation: bars.NewSeries(cfg.ConfirmationHistory),
		aggStructure: bars.NewAggregator(cfg.StructureTF),
		aggConfirm:   bars.NewAggregator(cfg.ConfirmationTF),
		store:        store,
		log:          log.With(logger.String("component", "market_data")),
	}
}

// Seed loads recent history from the bar store.
func (m *MarketData) Seed(ctx context.Context, structureN, confirmationN int) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.GetLatestNBars(ctx, m.symbol, structureN, m.structureTF)
	if err != nil {
		return fmt.Errorf("seed %s bars: %w", m.structureTF, err)
	}
	c, err := m.store.GetLatestNBars(ctx, m.symbol, confirmationN, m.confirmTF)
	if err != nil {
		return fmt.Errorf("seed %s bars: %w", m.confirmTF, err)
	}
	m.mu.Lock()
	m.structure.Seed(s)
	m.confirmation.Seed(c)
	m.mu.Unlock()
	m.log.Info("history loaded", logger.Int("structure", len(s)), logger.Int("confirmation", len(c)))
	return nil
}

type closedBar struct {
	tf  domrepo.Timeframe
	bar models.Bar
}

// OnTick folds a tick into both timeframes and reports which bars closed.
func (m *MarketData) OnTick(ctx context.Context, t models.Tick) (closedStructure, closedConfirm bool) {
	var closed []closedBar
	m.mu.Lock()
	if b, ok := m.aggStructure.OnTick(t); ok {
		if _, err := m.structure.Append(b); err == nil {
			closedStructure = true
			closed = append(closed, closedBar{m.structureTF, b})
		}
	}
	if b, ok := m.aggConfirm.OnTick(t); ok {
		if _, err := m.confirmation.Append(b); err == nil {
			closedConfirm = true
			closed = append(closed, closedBar{m.confirmTF, b})
		}
	}
	m.mu.Unlock()

	for _, c := range closed {
		m.persist(ctx, c.tf, c.bar)
	}
	return closedStructure, closedConfirm
}

// OnBar appends an already closed bar, as delivered on the bars topic.
func (m *MarketData) OnBar(ctx context.Context, tf domrepo.Timeframe, b models.Bar) error {
	m.mu.Lock()
	var err error
	switch tf {
	case m.structureTF:
		_, err = m.structure.Append(b)
	case m.confirmTF:
		_, err = m.confirmation.Append(b)
	default:
		err = fmt.Errorf("timeframe %s not tracked", tf)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.persist(ctx, tf, b)
	return nil
}

func (m *MarketData) persist(ctx context.Context, tf domrepo.Timeframe, b models.Bar) {
	if m.store == nil {
		return
	}
	if b.Symbol == "" {
		b.Symbol = m.symbol
	}
	if err := m.store.AppendBar(ctx, tf, b); err != nil {
		m.log.Warn("persist bar", logger.String("tf", string(tf)), logger.Error(err))
	}
}

// Series returns snapshots of both timeframes.
func (m *MarketData) Series() (structure, confirmation models.BarSeries) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.structure.Snapshot(), m.confirmation.Snapshot()
}

var _ BarSource = (*MarketData)(nil)
