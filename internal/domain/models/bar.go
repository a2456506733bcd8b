package models

import (
	"sort"
	"time"
)

// Bar represents an OHLCV record of one timeframe bucket.
type Bar struct {
	OpenTime time.Time `json:"open_time"`
	Symbol   string    `json:"symbol,omitempty"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

func (b Bar) IsBullish() bool { return b.Close > b.Open }

func (b Bar) IsBearish() bool { return b.Close < b.Open }

// Mirror returns the bar with prices negated (highs become lows).
func (b Bar) Mirror() Bar {
	return Bar{
		OpenTime: b.OpenTime,
		Symbol:   b.Symbol,
		Open:     -b.Open,
		High:     -b.Low,
		Low:      -b.High,
		Close:    -b.Close,
		Volume:   b.Volume,
	}
}

// BarSeries is an ordered run of bars addressed by absolute index.
// Base is the absolute index of Bars[0], so indices stay stable when
// the head of the series is trimmed.
type BarSeries struct {
	Base int
	Bars []Bar
}

func NewBarSeries(bars []Bar) BarSeries {
	return BarSeries{Bars: bars}
}

func (s BarSeries) Len() int { return len(s.Bars) }

func (s BarSeries) FirstIndex() int { return s.Base }

// LastIndex returns the absolute index of the newest bar, or Base-1 when empty.
func (s BarSeries) LastIndex() int { return s.Base + len(s.Bars) - 1 }

func (s BarSeries) At(i int) (Bar, bool) {
	j := i - s.Base
	if j < 0 || j >= len(s.Bars) {
		return Bar{}, false
	}
	return s.Bars[j], true
}

func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// IndexAt returns the absolute index of the newest bar opened at or before t,
// or FirstIndex()-1 when every bar is newer.
func (s BarSeries) IndexAt(t time.Time) int {
	n := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].OpenTime.After(t) })
	return s.Base + n - 1
}

// Tail returns up to n newest bars.
func (s BarSeries) Tail(n int) []Bar {
	if n <= 0 || len(s.Bars) == 0 {
		return nil
	}
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	return s.Bars[len(s.Bars)-n:]
}

// Clone copies the bar slice so callers can keep it past the owner's lock.
func (s BarSeries) Clone() BarSeries {
	out := make([]Bar, len(s.Bars))
	copy(out, s.Bars)
	return BarSeries{Base: s.Base, Bars: out}
}
