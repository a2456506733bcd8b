package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]models.Event
}

func (m *memStore) StoreBatch(_ context.Context, events []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]models.Event(nil), events...))
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type eventMetrics struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (m *eventMetrics) RecordTick(string) {}
func (m *eventMetrics) RecordProposal(string, string) {}
func (m *eventMetrics) RecordLevels(map[string]int) {}
func (m *eventMetrics) RecordLastPrice(string, float64) {}
func (m *eventMetrics) RecordLatency(string, float64) {}
func (m *eventMetrics) RecordError(string) {}
func (m *eventMetrics) RecordEvent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kinds == nil {
		m.kinds = map[string]int{}
	}
	m.kinds[kind]++
}

func TestEmitFillsDefaults(t *testing.T) {
	m := &eventMetrics{}
	s := NewSink(nil, m)
	s.Emit(context.Background(), models.Event{Kind: models.EventStopRejected, Symbol: "EURUSD"})

	got := s.Recent(1)
	if len(got) != 1 {
		t.Fatalf("expected one recent event, got %d", len(got))
	}
	e := got[0]
	if e.ID == "" || e.At.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", e)
	}
	if e.Level != models.LevelWarn {
		t.Fatalf("expected warn level, got %s", e.Level)
	}
	if m.kinds[string(models.EventStopRejected)] != 1 {
		t.Fatalf("expected metric for kind, got %v", m.kinds)
	}
}

func TestRecentIsBounded(t *testing.T) {
	s := NewSink(nil, nil, WithRecent(3))
	for i := 0; i < 5; i++ {
		s.Emit(context.Background(), models.Event{Kind: models.EventLevelFound, Note: string(rune('a' + i))})
	}
	got := s.Recent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 recent events, got %d", len(got))
	}
	if got[0].Note != "c" || got[2].Note != "e" {
		t.Fatalf("unexpected order %q..%q", got[0].Note, got[2].Note)
	}
}

func TestBatchesReachStore(t *testing.T) {
	st := &memStore{}
	s := NewSink(nil, nil, WithStore(st), WithBatch(2, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	for i := 0; i < 3; i++ {
		s.Emit(ctx, models.Event{Kind: models.EventLevelSwept, Symbol: "EURUSD"})
	}
	deadline := time.Now().Add(time.Second)
	for st.total() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st.total() != 2 {
		t.Fatalf("expected full batch flushed, got %d", st.total())
	}

	s.Close(context.Background())
	if st.total() != 3 {
		t.Fatalf("expected remainder flushed on close, got %d", st.total())
	}
}

func TestEmitAfterCloseWritesSynchronously(t *testing.T) {
	st := &memStore{}
	s := NewSink(nil, nil, WithStore(st), WithBatch(10, time.Hour))
	s.Start(context.Background())
	s.Close(context.Background())

	s.Emit(context.Background(), models.Event{Kind: models.EventExecutionReport, Symbol: "EURUSD"})
	if st.total() != 1 {
		t.Fatalf("late event not stored before Emit returned, got %d", st.total())
	}
}
