// Package session handles hour ranges: the daily level-formation window and
// the trading-hours allow-list.
package session

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Range is a half-open time-of-day interval [From, To). A range whose From
// is after To wraps midnight.
type Range struct {
	From time.Duration
	To   time.Duration
}

// ParseRange parses "HH:MM-HH:MM".
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("session range %q: want HH:MM-HH:MM", s)
	}
	from, err := parseClock(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("session range %q: %w", s, err)
	}
	to, err := parseClock(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("session range %q: %w", s, err)
	}
	if from == to {
		return Range{}, fmt.Errorf("session range %q is empty", s)
	}
	return Range{From: from, To: to}, nil
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Contains reports whether the wall-clock time of t lies in the range.
func (r Range) Contains(t time.Time) bool {
	off := sinceMidnight(t)
	if r.From < r.To {
		return off >= r.From && off < r.To
	}
	return off >= r.From || off < r.To
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", clock(r.From), clock(r.To))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// Calendar resolves days and ranges in the server's time zone.
type Calendar struct {
	loc     *time.Location
	window  Range
	trading []Range
}

// NewCalendar builds a calendar from the session window and the trading-hours
// list. An empty trading list allows every hour.
func NewCalendar(loc *time.Location, window string, trading []string) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	w, err := ParseRange(window)
	if err != nil {
		return nil, err
	}
	c := &Calendar{loc: loc, window: w}
	for _, s := range trading {
		r, err := ParseRange(s)
		if err != nil {
			return nil, err
		}
		c.trading = append(c.trading, r)
	}
	return c, nil
}

// Day returns the calendar day key (YYYY-MM-DD) of t.
func (c *Calendar) Day(t time.Time) string { return t.In(c.loc).Format(dayLayout) }

// InWindow reports whether t falls inside the session window of day.
func (c *Calendar) InWindow(t time.Time, day string) bool {
	lt := t.In(c.loc)
	return lt.Format(dayLayout) == day && c.window.Contains(lt)
}

// TradingAllowed reports whether t falls inside any trading-hours range.
func (c *Calendar) TradingAllowed(t time.Time) bool {
	if len(c.trading) == 0 {
		return true
	}
	lt := t.In(c.loc)
	for _, r := range c.trading {
		if r.Contains(lt) {
			return true
		}
	}
	return false
}

func (c *Calendar) Window() Range { return c.window }

func (c *Calendar) Location() *time.Location { return c.loc }
