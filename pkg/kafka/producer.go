// Package kafka wraps segmentio/kafka-go for the engine: a keyed JSON
// producer and an ordered per-topic consumer with retry and a dead-letter
// topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	producedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqsweep_kafka_produced_total",
		Help: "Messages written to Kafka by topic and result.",
	}, []string{"topic", "result"})

	produceSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liqsweep_kafka_produce_seconds",
		Help:    "Kafka write latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// Producer writes JSON values, hash-partitioned by key.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("producer defaults: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers")
	}
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   cfg.BatchBytes,
		BatchTimeout: cfg.Linger,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
	}}, nil
}

// Publish writes value to topic. []byte is sent as is, anything else as JSON.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any) error {
	b, ok := value.([]byte)
	if !ok {
		var err error
		if b, err = json.Marshal(value); err != nil {
			return fmt.Errorf("encode %s message: %w", topic, err)
		}
	}
	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: b, Time: start})
	produceSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		producedTotal.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("write %s: %w", topic, err)
	}
	producedTotal.WithLabelValues(topic, "ok").Inc()
	return nil
}

// PublishMessage writes an unkeyed message; the logger's error digest
// publishes through it.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload any) error {
	return p.Publish(ctx, topic, nil, payload)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
