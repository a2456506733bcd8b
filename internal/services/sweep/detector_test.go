package sweep

import (
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
)

var formed = time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)

func TestDetectBullishSweep(t *testing.T) {
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, formed)
	bar := models.Bar{OpenTime: time.Date(2024, 3, 4, 9, 3, 0, 0, time.UTC), Open: 1.1001, High: 1.1005, Low: 1.0995, Close: 1.1002}
	got := Detect([]models.LiquidityLevel{lvl}, bar, 42, models.BiasBullish)
	if len(got) != 1 {
		t.Fatalf("expected one sweep, got %d", len(got))
	}
	l := got[0]
	if l.State != models.StateSwept || l.SweepExtreme != 1.0995 || l.BOSLevel != 1.1005 || l.SweepIndex != 42 {
		t.Fatalf("unexpected swept level %+v", l)
	}
}

func TestDetectBearishSweep(t *testing.T) {
	lvl := models.NewLevel(1, models.HighFractal, 1.1000, formed)
	bar := models.Bar{OpenTime: formed.Add(time.Hour), Open: 1.0999, High: 1.1004, Low: 1.0993, Close: 1.0996}
	got := Detect([]models.LiquidityLevel{lvl}, bar, 7, models.BiasBearish)
	if len(got) != 1 || got[0].SweepExtreme != 1.1004 || got[0].BOSLevel != 1.0993 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestDetectIgnoresFutureLevelsAndMisses(t *testing.T) {
	future := models.NewLevel(1, models.LowFractal, 1.1000, formed.Add(2*time.Hour))
	untouched := models.NewLevel(2, models.LowFractal, 1.0900, formed)
	bar := models.Bar{OpenTime: formed.Add(time.Hour), High: 1.1005, Low: 1.0995}
	if got := Detect([]models.LiquidityLevel{future, untouched}, bar, 1, models.BiasBullish); len(got) != 0 {
		t.Fatalf("expected no sweeps, got %+v", got)
	}
}

func TestDetectEqualPriceIsNotSweep(t *testing.T) {
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, formed)
	bar := models.Bar{OpenTime: formed.Add(time.Hour), High: 1.1005, Low: 1.1000}
	if got := Detect([]models.LiquidityLevel{lvl}, bar, 1, models.BiasBullish); len(got) != 0 {
		t.Fatal("touching the level is not a sweep")
	}
}

func TestDetectAtMostOnce(t *testing.T) {
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, formed)
	first := models.Bar{OpenTime: formed.Add(time.Hour), High: 1.1005, Low: 1.0995}
	swept := Detect([]models.LiquidityLevel{lvl}, first, 5, models.BiasBullish)
	if len(swept) != 1 {
		t.Fatal("expected sweep")
	}
	deeper := models.Bar{OpenTime: formed.Add(2 * time.Hour), High: 1.0990, Low: 1.0980}
	for _, b := range []models.Bar{first, deeper} {
		if again := Detect(swept, b, 6, models.BiasBullish); len(again) != 0 {
			t.Fatalf("swept level changed again: %+v", again)
		}
	}
}

func TestDetectNeutralNoop(t *testing.T) {
	lvl := models.NewLevel(1, models.LowFractal, 1.1000, formed)
	bar := models.Bar{OpenTime: formed.Add(time.Hour), High: 1.2, Low: 1.0}
	if got := Detect([]models.LiquidityLevel{lvl}, bar, 1, models.BiasNeutral); len(got) != 0 {
		t.Fatal("neutral bias must not sweep")
	}
}
