package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"LiqSweep/internal/domain/models"
	domrepo "LiqSweep/internal/domain/repository"
	"LiqSweep/internal/service/ratelimit"
	"LiqSweep/pkg/logger"
)

// Proc is the downstream of the pipeline. Fold must accept every valid tick;
// Evaluate may be throttled and retried.
type Proc interface {
	Fold(ctx context.Context, t *models.Tick)
	Evaluate(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between the price feed and the engine. It validates
// ticks, feeds every one into bar aggregation, throttles engine evaluation
// per symbol and buffers evaluations that failed downstream. A buffered tick
// is dropped once a newer tick of its symbol has been evaluated.
type TickPipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	limiter   *ratelimit.Limiter
	log       *logger.Logger
	bufSize   int
	bufCh     chan *models.Tick
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
	transform func(*models.Tick) *models.Tick

	// newest evaluated tick time per symbol
	evaluated map[string]time.Time
}

type PipelineOption func(*TickPipeline)

// WithLimiter throttles evaluations per symbol.
func WithLimiter(l *ratelimit.Limiter) PipelineOption {
	return func(p *TickPipeline) { p.limiter = l }
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook that rewrites ticks before validation.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *TickPipeline) { p.transform = fn }
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *TickPipeline) { p.log = l }
}

func NewTickPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		proc:    proc,
		metrics: metrics,
		bufSize: 256,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		log:       logger.Nop(),
		evaluated: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Tick, p.bufSize)
	return p
}

// Start launches the retry loop for buffered evaluations.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case t := <-p.bufCh:
				if p.stale(t) {
					p.metrics.RecordError("pipeline_stale")
					continue
				}
				if err := p.proc.Evaluate(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_retry")
					p.log.Warn("buffered evaluation failed",
						logger.String("symbol", t.Symbol),
						logger.Duration("backoff_ms", backoff),
						logger.Error(err))
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				p.markEvaluated(t)
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop ends the retry loop and waits for it.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Process validates t, folds it into bars and, unless throttled, evaluates it.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if p.transform != nil {
		t = p.transform(t)
	}
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.proc.Fold(ctx, t)

	if p.limiter != nil && !p.limiter.Allow(t.Symbol) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Evaluate(ctx, t); err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.markEvaluated(t)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *TickPipeline) markEvaluated(t *models.Tick) {
	p.mu.Lock()
	if t.Time.After(p.evaluated[t.Symbol]) {
		p.evaluated[t.Symbol] = t.Time
	}
	p.mu.Unlock()
}

func (p *TickPipeline) stale(t *models.Tick) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return t.Time.Before(p.evaluated[t.Symbol])
}

// Buffered returns the number of evaluations waiting for retry.
func (p *TickPipeline) Buffered() int { return len(p.bufCh) }

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Time.IsZero() {
		return fmt.Errorf("time missing")
	}
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("price invalid: %v", t.Price)
	}
	if t.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}
