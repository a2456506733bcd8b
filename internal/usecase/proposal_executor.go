package usecase

import (
	"context"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	domsvc "LiqSweep/internal/domain/service"
	"LiqSweep/pkg/queue"
)

const (
	BackendKafka = "kafka"
	BackendRedis = "redis"

	// ProposalMessageType tags proposals on the Redis outbox.
	ProposalMessageType = "proposal"
)

// ProposalExecutor delivers proposals to the configured execution backend.
type ProposalExecutor struct {
	pub     drepo.ProposalPublisher
	outbox  queue.Publisher
	metrics drepo.Metrics
	backend string
}

// NewProposalExecutor creates an executor. Only the collaborator of the
// selected backend needs to be non-nil.
func NewProposalExecutor(pub drepo.ProposalPublisher, outbox queue.Publisher, metrics drepo.Metrics, backend string) *ProposalExecutor {
	return &ProposalExecutor{pub: pub, outbox: outbox, metrics: metrics, backend: backend}
}

// Submit hands p to the backend.
func (e *ProposalExecutor) Submit(ctx context.Context, p *models.TradeProposal) error {
	if p == nil {
		return fmt.Errorf("proposal is nil")
	}
	start := time.Now()
	var err error

	switch e.backend {
	case BackendKafka:
		if e.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
			break
		}
		err = e.pub.Publish(ctx, p)
	case BackendRedis:
		if e.outbox == nil {
			err = fmt.Errorf("redis outbox not configured")
			break
		}
		err = e.outbox.Publish(ctx, ProposalMessageType, p)
	default:
		err = fmt.Errorf("unknown backend: %s", e.backend)
	}

	if err != nil {
		e.metrics.RecordError("submit")
		return fmt.Errorf("submit proposal %s: %w", p.ID, err)
	}
	e.metrics.RecordLatency("submit", time.Since(start).Seconds())
	return nil
}

func (e *ProposalExecutor) Close() {
	if e.pub != nil {
		_ = e.pub.Close()
	}
}

var _ domsvc.Executor = (*ProposalExecutor)(nil)
