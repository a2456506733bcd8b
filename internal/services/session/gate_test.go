package session

import (
	"testing"
	"time"
)

func at(h, m int) time.Time { return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC) }

func TestParseRange(t *testing.T) {
	r, err := ParseRange("06:00-12:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.From != 6*time.Hour || r.To != 12*time.Hour+30*time.Minute {
		t.Fatalf("unexpected range %+v", r)
	}
	if r.String() != "06:00-12:30" {
		t.Fatalf("string: %s", r)
	}
	for _, bad := range []string{"", "06:00", "6-7-8", "25:00-26:00", "06:00-06:00", "aa:bb-07:00"} {
		if _, err := ParseRange(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRangeContainsHalfOpen(t *testing.T) {
	r, _ := ParseRange("00:00-09:00")
	if !r.Contains(at(0, 0)) || !r.Contains(at(8, 59)) {
		t.Fatal("expected start and 08:59 inside")
	}
	if r.Contains(at(9, 0)) {
		t.Fatal("end must be exclusive")
	}
}

func TestRangeWrapsMidnight(t *testing.T) {
	r, _ := ParseRange("22:00-02:00")
	if !r.Contains(at(23, 0)) || !r.Contains(at(1, 0)) {
		t.Fatal("expected wrap-around containment")
	}
	if r.Contains(at(12, 0)) {
		t.Fatal("noon outside")
	}
}

func TestCalendarGates(t *testing.T) {
	c, err := NewCalendar(time.UTC, "00:00-09:00", []string{"06:00-07:00", "07:00-12:00"})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if c.TradingAllowed(at(5, 59)) || !c.TradingAllowed(at(6, 0)) || !c.TradingAllowed(at(11, 59)) || c.TradingAllowed(at(12, 0)) {
		t.Fatal("trading hours mismatch")
	}
	day := c.Day(at(3, 0))
	if day != "2024-03-04" {
		t.Fatalf("day %s", day)
	}
	if !c.InWindow(at(2, 0), day) || c.InWindow(at(10, 0), day) {
		t.Fatal("window mismatch")
	}
	if c.InWindow(at(2, 0).Add(-24*time.Hour), day) {
		t.Fatal("previous day bar must not be in window")
	}
}

func TestCalendarEmptyTradingListAllowsAll(t *testing.T) {
	c, err := NewCalendar(nil, "00:00-09:00", nil)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if !c.TradingAllowed(at(23, 0)) {
		t.Fatal("expected allowed")
	}
}
