package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]DigestEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func TestDigestCountsRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AttachDigest(DigestConfig{Window: time.Hour, MaxEntries: 10, Topic: "alerts", Publisher: pub, Service: "liqsweep"})
	for i := 0; i < 3; i++ {
		l.Error("publish proposal", String("symbol", "EURUSD"), Error(errors.New("broker down")))
	}
	l.Error("publish proposal", String("symbol", "GBPUSD"), Error(errors.New("broker down")))
	l.Error("other failure")
	l.DetachDigest()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "alerts" || len(pub.batches) != 1 {
		t.Fatalf("expected one batch to alerts, got %d to %q", len(pub.batches), pub.topic)
	}
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		if e.Service != "liqsweep" {
			t.Fatalf("service tag missing: %+v", e)
		}
		sym, _ := e.Fields["symbol"].(string)
		counts[e.Message+"/"+sym] = e.Count
	}
	if counts["publish proposal/EURUSD"] != 3 || counts["publish proposal/GBPUSD"] != 1 || counts["other failure/"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestDigestReachesChildrenCreatedBeforeAttach(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	child := l.With(String("component", "engine"))
	l.AttachDigest(DigestConfig{Window: time.Hour, MaxEntries: 1, Topic: "alerts", Publisher: pub})
	child.Error("boom")
	l.DetachDigest()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || pub.batches[0][0].Message != "boom" {
		t.Fatalf("expected the child's error in a digest, got %+v", pub.batches)
	}
}

func TestFieldValues(t *testing.T) {
	if v := Duration("took", 1500*time.Millisecond).Value(); v != int64(1500) {
		t.Fatalf("duration = %v", v)
	}
	if v := Error(nil).Value(); v != nil {
		t.Fatalf("nil error = %v", v)
	}
	if v := Float64("price", 1.1).Value(); v != 1.1 {
		t.Fatalf("float = %v", v)
	}
}
