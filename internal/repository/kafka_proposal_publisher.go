package repository

import (
	"context"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/domain/repository"
	pkgkafka "LiqSweep/pkg/kafka"
)

// KafkaProposalPublisher implements ProposalPublisher for Kafka.
type KafkaProposalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaProposalPublisher(producer *pkgkafka.Producer, topic string) *KafkaProposalPublisher {
	return &KafkaProposalPublisher{producer: producer, topic: topic}
}

// Publish keys the message by symbol so proposals of one instrument stay ordered.
func (p *KafkaProposalPublisher) Publish(ctx context.Context, tp *models.TradeProposal) error {
	return p.producer.Publish(ctx, p.topic, []byte(tp.Symbol), tp)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaProposalPublisher) Close() error { return nil }

var _ repository.ProposalPublisher = (*KafkaProposalPublisher)(nil)
