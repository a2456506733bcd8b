// Package bars folds ticks into timeframe bars and keeps bounded bar series.
package bars

import (
	"errors"
	"fmt"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/domain/repository"
)

var ErrOutOfOrder = errors.New("bar out of order")

// Aggregator builds bars of one timeframe from a tick stream.
type Aggregator struct {
	tf  repository.Timeframe
	cur *models.Bar
}

func NewAggregator(tf repository.Timeframe) *Aggregator {
	return &Aggregator{tf: tf}
}

func (a *Aggregator) Timeframe() repository.Timeframe { return a.tf }

// OnTick folds t into the open bar. When t starts a new bucket the previous
// bar is returned as closed. Ticks older than the open bucket are dropped.
func (a *Aggregator) OnTick(t models.Tick) (closed models.Bar, ok bool) {
	bucket := a.tf.Bucket(t.Time)
	if a.cur == nil {
		a.open(t, bucket)
		return models.Bar{}, false
	}
	switch {
	case bucket.Before(a.cur.OpenTime):
		return models.Bar{}, false
	case bucket.After(a.cur.OpenTime):
		closed = *a.cur
		a.open(t, bucket)
		return closed, true
	}
	if t.Price > a.cur.High {
		a.cur.High = t.Price
	}
	if t.Price < a.cur.Low {
		a.cur.Low = t.Price
	}
	a.cur.Close = t.Price
	a.cur.Volume += t.Volume
	return models.Bar{}, false
}

// Current returns the bar still being built.
func (a *Aggregator) Current() (models.Bar, bool) {
	if a.cur == nil {
		return models.Bar{}, false
	}
	return *a.cur, true
}

func (a *Aggregator) open(t models.Tick, bucket time.Time) {
	a.cur = &models.Bar{
		OpenTime: bucket,
		Symbol:   t.Symbol,
		Open:     t.Price,
		High:     t.Price,
		Low:      t.Price,
		Close:    t.Price,
		Volume:   t.Volume,
	}
}

// Series is a bounded, append-only bar buffer with stable absolute indices.
type Series struct {
	max    int
	series models.BarSeries
}

// NewSeries keeps at most max bars (0 means unbounded).
func NewSeries(max int) *Series {
	return &Series{max: max}
}

// Seed replaces the contents with history, oldest first.
func (s *Series) Seed(history []models.Bar) {
	bars := make([]models.Bar, len(history))
	copy(bars, history)
	s.series = models.BarSeries{Bars: bars}
	s.trim()
}

// Append adds a closed bar and returns its absolute index. A bar with the
// same open time as the newest one replaces it.
func (s *Series) Append(b models.Bar) (int, error) {
	if last, ok := s.series.Last(); ok {
		switch {
		case b.OpenTime.Equal(last.OpenTime):
			s.series.Bars[len(s.series.Bars)-1] = b
			return s.series.LastIndex(), nil
		case b.OpenTime.Before(last.OpenTime):
			return -1, fmt.Errorf("%w: %s before %s", ErrOutOfOrder, b.OpenTime, last.OpenTime)
		}
	}
	s.series.Bars = append(s.series.Bars, b)
	s.trim()
	return s.series.LastIndex(), nil
}

// Snapshot returns a copy safe to read without the owner's lock.
func (s *Series) Snapshot() models.BarSeries { return s.series.Clone() }

func (s *Series) Len() int { return s.series.Len() }

func (s *Series) trim() {
	if s.max <= 0 || len(s.series.Bars) <= s.max {
		return
	}
	drop := len(s.series.Bars) - s.max
	kept := make([]models.Bar, s.max)
	copy(kept, s.series.Bars[drop:])
	s.series.Bars = kept
	s.series.Base += drop
}
