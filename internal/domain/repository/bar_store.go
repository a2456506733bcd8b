package repository

import (
	"context"
	"time"

	"LiqSweep/internal/domain/models"
)

// BarStore provides bar history and persistence of closed bars.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
	AppendBar(ctx context.Context, tf Timeframe, bar models.Bar) error
}
