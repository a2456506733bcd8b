package service

import (
	"context"

	"LiqSweep/internal/domain/models"
)

// AccountProvider supplies balance and instrument metadata for sizing.
type AccountProvider interface {
	Account(ctx context.Context) (models.Account, error)
	Instrument(ctx context.Context, symbol string) (models.Instrument, error)
}

// EventSink receives engine decision events.
type EventSink interface {
	Emit(ctx context.Context, e models.Event)
}

// Executor submits a proposal; a nil error means it was delivered.
type Executor interface {
	Submit(ctx context.Context, p *models.TradeProposal) error
}
