// Package events fans engine decision events out to the log, metrics and the
// event store.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"LiqSweep/internal/domain/models"
	drepo "LiqSweep/internal/domain/repository"
	domsvc "LiqSweep/internal/domain/service"
	"LiqSweep/pkg/logger"
)

const (
	defaultBatchSize = 200
	defaultFlush     = 2 * time.Second
)

// Option configures a Sink.
type Option func(*Sink)

// WithStore persists events in batches.
func WithStore(s drepo.EventStore) Option { return func(k *Sink) { k.store = s } }

// WithBatch overrides the flush size and interval.
func WithBatch(size int, every time.Duration) Option {
	return func(k *Sink) {
		if size > 0 {
			k.batchSize = size
		}
		if every > 0 {
			k.flushEvery = every
		}
	}
}

// WithRecent keeps the last n events in memory for the API.
func WithRecent(n int) Option { return func(k *Sink) { k.recentCap = n } }

type Sink struct {
	log     *logger.Logger
	metrics drepo.Metrics
	store   drepo.EventStore

	batchSize  int
	flushEvery time.Duration
	recentCap  int

	mu      sync.Mutex
	pending []models.Event
	recent  []models.Event
	closed  bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
	now  func() time.Time
}

func NewSink(log *logger.Logger, metrics drepo.Metrics, opts ...Option) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	s := &Sink{
		log:        log.With(logger.String("component", "events")),
		metrics:    metrics,
		batchSize:  defaultBatchSize,
		flushEvery: defaultFlush,
		recentCap:  100,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Emit never blocks on the store while the sink is open; a full batch is
// flushed in the background. After Close, events are written synchronously.
func (s *Sink) Emit(ctx context.Context, e models.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Level == "" {
		e.Level = e.Kind.Severity()
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	s.logEvent(e)
	if s.metrics != nil {
		s.metrics.RecordEvent(string(e.Kind))
	}

	s.mu.Lock()
	if s.recentCap > 0 {
		s.recent = append(s.recent, e)
		if over := len(s.recent) - s.recentCap; over > 0 {
			s.recent = append(s.recent[:0:0], s.recent[over:]...)
		}
	}
	var batch []models.Event
	if s.store != nil {
		s.pending = append(s.pending, e)
		if s.closed || len(s.pending) >= s.batchSize {
			batch = s.pending
			s.pending = nil
		}
	}
	closed := s.closed
	s.mu.Unlock()

	switch {
	case batch == nil:
	case closed:
		s.write(context.WithoutCancel(ctx), batch)
	default:
		go s.write(context.WithoutCancel(ctx), batch)
	}
}

func (s *Sink) logEvent(e models.Event) {
	fields := []logger.Field{
		logger.String("kind", string(e.Kind)),
		logger.String("symbol", e.Symbol),
		logger.Time("at", e.At),
	}
	if e.LevelID != 0 {
		fields = append(fields, logger.Int("level_id", int(e.LevelID)))
	}
	for k, v := range e.Values {
		fields = append(fields, logger.Float64(k, v))
	}
	if e.Note != "" {
		fields = append(fields, logger.String("note", e.Note))
	}
	switch e.Level {
	case models.LevelDebug:
		s.log.Debug("engine event", fields...)
	case models.LevelWarn:
		s.log.Warn("engine event", fields...)
	default:
		s.log.Info("engine event", fields...)
	}
}

// Recent returns up to n of the newest events, oldest first.
func (s *Sink) Recent(n int) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]models.Event, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out
}

// Start runs the periodic flush until ctx ends or Close is called.
func (s *Sink) Start(ctx context.Context) {
	if s.store == nil {
		close(s.done)
		return
	}
	go func() {
		defer close(s.done)
		t := time.NewTicker(s.flushEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.Flush(context.WithoutCancel(ctx))
				return
			case <-s.stop:
				return
			case <-t.C:
				s.Flush(ctx)
			}
		}
	}()
}

// Flush writes whatever is pending.
func (s *Sink) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) > 0 {
		s.write(ctx, batch)
	}
}

func (s *Sink) write(ctx context.Context, batch []models.Event) {
	if err := s.store.StoreBatch(ctx, batch); err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("event_store")
		}
		s.log.Error("store events", logger.Int("count", len(batch)), logger.Error(err))
	}
}

// Close stops the flush loop and writes the remainder.
func (s *Sink) Close(ctx context.Context) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
	})
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	if s.store != nil {
		s.Flush(ctx)
	}
}

var _ domsvc.EventSink = (*Sink)(nil)
