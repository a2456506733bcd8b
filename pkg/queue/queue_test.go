package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type report struct {
	ProposalID string  `json:"proposal_id"`
	FillPrice  float64 `json:"fill_price"`
}

func TestNewMessageAndDecode(t *testing.T) {
	msg, err := NewMessage("execution_report", report{ProposalID: "p-1", FillPrice: 1.1011})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatalf("envelope not filled: %+v", msg)
	}
	got, err := Decode[report](msg.Payload)
	if err != nil || got.ProposalID != "p-1" || got.FillPrice != 1.1011 {
		t.Fatalf("decode: %+v %v", got, err)
	}

	if _, err := Decode[report](json.RawMessage(`{"fill_price":"x"}`)); !IsPermanent(err) {
		t.Fatalf("malformed payload should be permanent, got %v", err)
	}
	if _, err := Decode[report](nil); !IsPermanent(err) {
		t.Fatalf("empty payload should be permanent, got %v", err)
	}
	if _, err := NewMessage("x", func() {}); err == nil {
		t.Fatal("expected encode error")
	}
}

type scriptedJob struct {
	errs  []error
	calls int
}

func (j *scriptedJob) Type() string { return "execution_report" }

func (j *scriptedJob) Handle(context.Context, json.RawMessage) error {
	j.calls++
	if len(j.errs) == 0 {
		return nil
	}
	err := j.errs[0]
	j.errs = j.errs[1:]
	return err
}

func TestDispatchOutcomes(t *testing.T) {
	job := &scriptedJob{errs: []error{errors.New("busy"), errors.New("busy")}}
	c := NewRedisConsumer(nil, nil, "liqsweep:reports", ConsumerConfig{MaxAttempts: 2}, job)
	ctx := context.Background()
	msg, _ := NewMessage("execution_report", report{ProposalID: "p-1"})

	if out := c.dispatch(ctx, &msg); out != retryLater || msg.Attempts != 1 || msg.LastError != "busy" {
		t.Fatalf("first failure: %v %+v", out, msg)
	}
	if out := c.dispatch(ctx, &msg); out != deadLetter || msg.Attempts != 2 {
		t.Fatalf("exhausted retries: %v %+v", out, msg)
	}

	fresh, _ := NewMessage("execution_report", report{ProposalID: "p-2"})
	if out := c.dispatch(ctx, &fresh); out != handled {
		t.Fatalf("expected handled, got %v", out)
	}

	job.errs = []error{Permanent(errors.New("bad report"))}
	bad, _ := NewMessage("execution_report", report{})
	if out := c.dispatch(ctx, &bad); out != deadLetter || bad.Attempts != 1 {
		t.Fatalf("permanent error must not retry: %v %+v", out, bad)
	}

	unknown, _ := NewMessage("fill", report{})
	if out := c.dispatch(ctx, &unknown); out != deadLetter || job.calls != 4 {
		t.Fatalf("unknown type: %v calls=%d", out, job.calls)
	}
}

func TestRetryDelayDoublesUpToMax(t *testing.T) {
	cfg := ConsumerConfig{RetryBase: time.Second, RetryMax: 5 * time.Second}
	cfg.setDefaults()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := cfg.retryDelay(i + 1); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}
