package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/service/ratelimit"
)

type fakeProc struct {
	mu     sync.Mutex
	folded int
	evals  int
	fail   int
}

func (f *fakeProc) Fold(context.Context, *models.Tick) {
	f.mu.Lock()
	f.folded++
	f.mu.Unlock()
}

func (f *fakeProc) Evaluate(context.Context, *models.Tick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.fail > 0 {
		f.fail--
		return errors.New("downstream unavailable")
	}
	return nil
}

func (f *fakeProc) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folded, f.evals
}

type nopMetrics struct{}

func (nopMetrics) RecordTick(string) {}
func (nopMetrics) RecordEvent(string) {}
func (nopMetrics) RecordProposal(string, string) {}
func (nopMetrics) RecordLevels(map[string]int) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordError(string) {}

func tick(price float64) *models.Tick {
	return &models.Tick{Symbol: "EURUSD", Time: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), Price: price}
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &fakeProc{}
	p := NewTickPipeline(proc, nopMetrics{})
	cases := []*models.Tick{
		nil,
		{Symbol: "", Time: time.Now(), Price: 1},
		{Symbol: "EURUSD", Price: 1},
		{Symbol: "EURUSD", Time: time.Now(), Price: 0},
		{Symbol: "EURUSD", Time: time.Now(), Price: 1, Volume: -1},
	}
	for i, tc := range cases {
		if err := p.Process(context.Background(), tc); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if f, e := proc.counts(); f != 0 || e != 0 {
		t.Fatalf("invalid ticks reached downstream: fold=%d eval=%d", f, e)
	}
}

func TestPipelineThrottlesEvaluationButFoldsEveryTick(t *testing.T) {
	proc := &fakeProc{}
	p := NewTickPipeline(proc, nopMetrics{}, WithLimiter(ratelimit.New(0.001, 1)))
	for i := 0; i < 5; i++ {
		if err := p.Process(context.Background(), tick(1.1+float64(i)*0.0001)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	f, e := proc.counts()
	if f != 5 || e != 1 {
		t.Fatalf("expected 5 folds and 1 evaluation, got %d/%d", f, e)
	}
}

func TestPipelineBuffersAndRetriesFailedEvaluation(t *testing.T) {
	proc := &fakeProc{fail: 1}
	p := NewTickPipeline(proc, nopMetrics{}, WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, tick(1.1)); err == nil {
		t.Fatal("expected downstream error")
	}
	if p.Buffered() != 1 {
		t.Fatalf("expected one buffered tick, got %d", p.Buffered())
	}
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, e := proc.counts(); e >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("buffered tick was not retried")
}

func TestPipelineDropsOvertakenRetries(t *testing.T) {
	proc := &fakeProc{fail: 1}
	p := NewTickPipeline(proc, nopMetrics{}, WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, tick(1.1)); err == nil {
		t.Fatal("expected downstream error")
	}
	newer := tick(1.1002)
	newer.Time = newer.Time.Add(time.Second)
	if err := p.Process(ctx, newer); err != nil {
		t.Fatalf("process: %v", err)
	}

	p.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for p.Buffered() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	if _, e := proc.counts(); e != 2 {
		t.Fatalf("overtaken tick was evaluated again: %d evaluations", e)
	}
}

func TestPipelineTransform(t *testing.T) {
	proc := &fakeProc{}
	p := NewTickPipeline(proc, nopMetrics{}, WithTransform(func(t *models.Tick) *models.Tick {
		c := *t
		c.Symbol = "EURUSD"
		return &c
	}))
	tk := tick(1.1)
	tk.Symbol = ""
	if err := p.Process(context.Background(), tk); err != nil {
		t.Fatalf("transformed tick should pass: %v", err)
	}
}
