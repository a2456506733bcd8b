package bos

import (
	"math"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
	"LiqSweep/internal/services/sweep"
)

const pip = 0.0001

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func m3(i int, o, h, l, c float64) models.Bar {
	return models.Bar{OpenTime: t0.Add(time.Duration(i) * 3 * time.Minute), Open: o, High: h, Low: l, Close: c}
}

// sweptLevel reproduces the 09:03 sweep of a 1.1000 low formed at 02:00.
func sweptLevel(t *testing.T, bars []models.Bar) models.LiquidityLevel {
	t.Helper()
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC))
	got := sweep.Detect([]models.LiquidityLevel{lvl}, bars[1], 1, models.BiasBullish)
	if len(got) != 1 || got[0].BOSLevel != 1.1005 {
		t.Fatalf("sweep setup failed: %+v", got)
	}
	return got[0]
}

func TestConfirmWithinDistance(t *testing.T) {
	bars := []models.Bar{
		m3(0, 1.1003, 1.1006, 1.1001, 1.1002),
		m3(1, 1.1002, 1.1005, 1.0995, 1.1001),
		m3(2, 1.1001, 1.1012, 1.1000, 1.1010),
	}
	lvl := sweptLevel(t, bars)
	got, res := Check(lvl, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res.Outcome != Confirmed || got.State != models.StateConfirmed {
		t.Fatalf("expected confirmed, got %s / %s", res.Outcome, got.State)
	}
	if got.EntryPrice != 1.1010 || res.EntryPrice != 1.1010 {
		t.Fatalf("entry %v", got.EntryPrice)
	}
	if math.Abs(res.ExcessPips-5) > 1e-6 {
		t.Fatalf("excess %v", res.ExcessPips)
	}
	if !res.At.Equal(t0.Add(6 * time.Minute)) {
		t.Fatalf("confirmed at %s", res.At)
	}
}

func TestOvershootInvalidates(t *testing.T) {
	bars := []models.Bar{
		m3(0, 1.1003, 1.1006, 1.1001, 1.1002),
		m3(1, 1.1002, 1.1005, 1.0995, 1.1001),
		m3(2, 1.1001, 1.1032, 1.1000, 1.1030),
		m3(3, 1.1030, 1.1031, 1.1006, 1.1007),
	}
	lvl := sweptLevel(t, bars)
	got, res := Check(lvl, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res.Outcome != Invalidated || got.State != models.StateInvalidated {
		t.Fatalf("expected invalidated, got %s", res.Outcome)
	}
	if got.EntryPrice != 0 {
		t.Fatal("invalidated level must have no entry")
	}
	// no re-arming on a later bar inside the distance
	again, res2 := Check(got, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res2.Outcome != Skipped || again.State != models.StateInvalidated {
		t.Fatalf("terminal level re-evaluated: %s", res2.Outcome)
	}
}

func TestPendingAdvancesAndNeverRescans(t *testing.T) {
	bars := []models.Bar{
		m3(0, 1.1003, 1.1006, 1.1001, 1.1002),
		m3(1, 1.1002, 1.1005, 1.0995, 1.1001),
		m3(2, 1.1001, 1.1004, 1.0998, 1.1003),
		m3(3, 1.1003, 1.1004, 1.0999, 1.1000),
	}
	lvl := sweptLevel(t, bars)
	got, res := Check(lvl, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res.Outcome != Pending || res.Examined != 2 || got.LastScannedIndex != 3 {
		t.Fatalf("unexpected pending pass %+v, last=%d", res, got.LastScannedIndex)
	}

	// rewriting already judged bars must not change anything
	bars[2].Close, bars[3].Close = 1.1010, 1.1010
	again, res2 := Check(got, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res2.Outcome != Pending || res2.Examined != 0 || again.LastScannedIndex != 3 {
		t.Fatalf("rescanned old bars: %+v", res2)
	}

	bars = append(bars, m3(4, 1.1000, 1.1009, 1.0999, 1.1008))
	final, res3 := Check(again, models.NewBarSeries(bars), models.BiasBullish, 15, pip)
	if res3.Outcome != Confirmed || res3.Examined != 1 || res3.Index != 4 || final.EntryPrice != 1.1008 {
		t.Fatalf("expected confirmation on new bar, got %+v", res3)
	}
}

func TestBearishMirror(t *testing.T) {
	lvl := models.NewLevel(1, models.HighFractal, 1.1000, time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC))
	bars := []models.Bar{
		m3(0, 1.0997, 1.0999, 1.0994, 1.0996),
		m3(1, 1.0996, 1.1005, 1.0995, 1.0999),
		m3(2, 1.0999, 1.1000, 1.0988, 1.0990),
	}
	swept := sweep.Detect([]models.LiquidityLevel{lvl}, bars[1], 1, models.BiasBearish)
	if len(swept) != 1 {
		t.Fatal("expected bearish sweep")
	}
	got, res := Check(swept[0], models.NewBarSeries(bars), models.BiasBearish, 15, pip)
	if res.Outcome != Confirmed || got.EntryPrice != 1.0990 {
		t.Fatalf("expected confirmed short, got %+v", res)
	}
}

func TestTrimmedSeriesStartsAtFirstRetainedBar(t *testing.T) {
	bars := []models.Bar{
		m3(0, 1.1003, 1.1006, 1.1001, 1.1002),
		m3(1, 1.1002, 1.1005, 1.0995, 1.1001),
		m3(2, 1.1001, 1.1004, 1.0998, 1.1003),
		m3(3, 1.1003, 1.1012, 1.1000, 1.1011),
	}
	lvl := sweptLevel(t, bars)
	trimmed := models.BarSeries{Base: 3, Bars: bars[3:]}
	got, res := Check(lvl, trimmed, models.BiasBullish, 15, pip)
	if res.Outcome != Confirmed || res.Index != 3 || got.EntryPrice != 1.1011 {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestSkipsNonSweptLevel(t *testing.T) {
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, t0)
	_, res := Check(lvl, models.NewBarSeries([]models.Bar{m3(0, 1, 2, 0.5, 1.5)}), models.BiasBullish, 15, pip)
	if res.Outcome != Skipped {
		t.Fatalf("expected skipped, got %s", res.Outcome)
	}
}
