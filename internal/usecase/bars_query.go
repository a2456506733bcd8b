package usecase

import (
	"context"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
)

// BarsQuery serves historical bars from the bar store.
type BarsQuery struct {
	store domrepo.BarStore
}

func NewBarsQuery(store domrepo.BarStore) *BarsQuery {
	return &BarsQuery{store: store}
}

type GetBarsParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetBarsResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	Count     int          `json:"count"`
	Bars      []models.Bar `json:"bars"`
}

func (q *BarsQuery) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if q.store == nil {
		return nil, fmt.Errorf("bar store not configured")
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	bars, err := q.store.GetBars(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}

	return &GetBarsResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(bars),
		Bars:      bars,
	}, nil
}
