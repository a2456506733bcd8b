package repository

import (
	"context"

	"LiqSweep/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ProposalPublisher hands trade proposals to the execution collaborator.
type ProposalPublisher interface {
	Publish(ctx context.Context, p *models.TradeProposal) error
	Close() error
}

// EventStore persists the decision trail.
type EventStore interface {
	StoreBatch(ctx context.Context, events []models.Event) error
	Close() error
}

// StateStore keeps the per-symbol day state across restarts.
type StateStore interface {
	Load(ctx context.Context, symbol string) (*models.DayState, error)
	Save(ctx context.Context, state *models.DayState) error
}

type Metrics interface {
	RecordTick(symbol string)
	RecordEvent(kind string)
	RecordProposal(symbol, direction string)
	RecordLevels(counts map[string]int)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
