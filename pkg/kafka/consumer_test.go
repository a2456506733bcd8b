package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type flakyHandler struct {
	fails int
	err   error
	calls int
}

func (h *flakyHandler) Topic() string { return "liqsweep.bars" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fails {
		return h.err
	}
	return nil
}

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	c := newTestConsumer(t)
	r := &fakeReader{}
	h := &flakyHandler{fails: 2, err: errors.New("clickhouse busy")}

	if !c.process(context.Background(), r, h, kafka.Message{Offset: 41}) {
		t.Fatal("consumer should keep running")
	}
	if h.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.calls)
	}
	if len(r.committed) != 1 || r.committed[0] != 41 {
		t.Fatalf("expected offset 41 committed, got %v", r.committed)
	}
}

func TestConsumerLeavesFailedMessageUncommittedWithoutDLQ(t *testing.T) {
	c := newTestConsumer(t)
	r := &fakeReader{}
	h := &flakyHandler{fails: 100, err: Permanent(errors.New("bad json"))}

	c.process(context.Background(), r, h, kafka.Message{Offset: 7})
	if h.calls != 1 {
		t.Fatalf("permanent errors must not retry, got %d calls", h.calls)
	}
	if len(r.committed) != 0 {
		t.Fatalf("nothing should be committed, got %v", r.committed)
	}
}

func TestConsumerDefaultsAndValidation(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{}, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
	c := newTestConsumer(t)
	if c.cfg.RetryMax != 3 || c.cfg.GroupID != "liqsweep-engine" || c.cfg.BackoffMin != time.Millisecond {
		t.Fatalf("unexpected config %+v", c.cfg)
	}
	if err := c.Start(); err == nil {
		t.Fatal("start without handlers should fail")
	}
}
