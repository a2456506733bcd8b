package usecase

import (
	"context"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	mid "LiqSweep/internal/middleware"
)

// TickProcessor folds ticks into bars and drives the orchestrator.
type TickProcessor struct {
	market  *MarketData
	engine  *Orchestrator
	metrics drepo.Metrics
}

func NewTickProcessor(market *MarketData, engine *Orchestrator, metrics drepo.Metrics) *TickProcessor {
	return &TickProcessor{market: market, engine: engine, metrics: metrics}
}

// Fold updates the bar series with t.
func (p *TickProcessor) Fold(ctx context.Context, t *models.Tick) {
	p.market.OnTick(ctx, *t)
	p.metrics.RecordTick(t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
}

// Evaluate runs one engine step at the tick's time and price.
func (p *TickProcessor) Evaluate(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if _, err := p.engine.OnTick(ctx, *t); err != nil {
		p.metrics.RecordError("evaluate")
		return fmt.Errorf("evaluate tick: %w", err)
	}
	p.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return nil
}

// Process folds and evaluates t without throttling.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	p.Fold(ctx, t)
	return p.Evaluate(ctx, t)
}

var _ mid.Proc = (*TickProcessor)(nil)
