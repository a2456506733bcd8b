package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/creasty/defaults"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"LiqSweep/pkg/logger"
)

// MessageHandler consumes one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, value []byte) error
}

var (
	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqsweep_kafka_consumed_total",
		Help: "Messages handled by topic and result (ok, dead_letter, failed).",
	}, []string{"topic", "result"})

	handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liqsweep_kafka_handle_seconds",
		Help:    "Handler time per message, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// fetcher is the part of kafka.Reader the consume loop uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads each registered topic in its own goroutine and handles
// messages strictly in partition order: the next message is fetched only
// after the previous one is handled or dead-lettered and committed.
type Consumer struct {
	cfg      ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]fetcher
	dlq      *kafka.Writer

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewConsumer(cfg ConsumerConfig, log *logger.Logger) (*Consumer, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("consumer defaults: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers")
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Consumer{
		cfg:      cfg,
		log:      log.With(logger.String("component", "kafka_consumer"), logger.String("group", cfg.GroupID)),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]fetcher),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler must be called before Start. A second handler for the
// same topic replaces the first.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for topic, h := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.wg.Add(1)
		go c.run(ctx, r, h)
	}
	c.log.Info("kafka consumer started", logger.Int("topics", len(c.handlers)))
	return nil
}

// Stop cancels the read loops, waits for the in-flight messages and closes
// the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}

func (c *Consumer) run(ctx context.Context, r fetcher, h MessageHandler) {
	defer c.wg.Done()
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("kafka fetch", logger.String("topic", h.Topic()), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}
		if !c.process(ctx, r, h, m) {
			return
		}
	}
}

// process handles m with retries and commits it once handled or
// dead-lettered. It reports false when the consumer is stopping.
func (c *Consumer) process(ctx context.Context, r fetcher, h MessageHandler, m kafka.Message) bool {
	topic := h.Topic()
	start := time.Now()
	err := backoff.RetryNotify(func() error {
		return c.safeHandle(ctx, h, m.Value)
	}, backoff.WithContext(backoff.WithMaxRetries(c.policy(), c.cfg.RetryMax), ctx),
		func(err error, wait time.Duration) {
			c.log.Warn("kafka handle failed, retrying",
				logger.String("topic", topic),
				logger.Int("partition", m.Partition),
				logger.Int64("offset", m.Offset),
				logger.Duration("wait", wait),
				logger.Error(err))
		})
	took := time.Since(start)
	handleSeconds.WithLabelValues(topic).Observe(took.Seconds())
	if c.cfg.Slow > 0 && took > c.cfg.Slow {
		c.log.Warn("kafka slow message", logger.String("topic", topic), logger.Int64("offset", m.Offset), logger.Duration("took", took))
	}
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		if c.dlq == nil {
			consumedTotal.WithLabelValues(topic, "failed").Inc()
			c.log.Error("kafka message dropped without dead-letter topic",
				logger.String("topic", topic), logger.Int64("offset", m.Offset), logger.Error(err))
			return true
		}
		if derr := c.deadLetter(ctx, topic, m, err); derr != nil {
			consumedTotal.WithLabelValues(topic, "failed").Inc()
			c.log.Error("kafka dead-letter write", logger.String("topic", topic), logger.Error(derr))
			return true
		}
		consumedTotal.WithLabelValues(topic, "dead_letter").Inc()
	} else {
		consumedTotal.WithLabelValues(topic, "ok").Inc()
	}

	if cerr := r.CommitMessages(context.WithoutCancel(ctx), m); cerr != nil {
		c.log.Error("kafka commit", logger.String("topic", topic), logger.Int64("offset", m.Offset), logger.Error(cerr))
	}
	return true
}

func (c *Consumer) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffMin
	b.MaxInterval = c.cfg.BackoffMax
	b.MaxElapsedTime = 0
	return b
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, value []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h.Handle(ctx, value)
}

func (c *Consumer) deadLetter(ctx context.Context, topic string, m kafka.Message, cause error) error {
	return c.dlq.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(topic)},
			{Key: "source_offset", Value: []byte(fmt.Sprint(m.Offset))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
}

// Permanent marks a handler error that retrying cannot fix, such as an
// undecodable message; it goes to the dead-letter topic at once.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
