package takeprofit

import (
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
)

// peaks builds hourly bars with the given highs; lows sit 5 pips under.
func peaks(highs ...float64) []models.Bar {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(highs))
	for i, h := range highs {
		out[i] = models.Bar{OpenTime: t0.Add(time.Duration(i) * time.Hour), High: h, Low: h - 0.0005, Open: h - 0.0002, Close: h - 0.0003}
	}
	return out
}

func mirror(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	for i, b := range bars {
		out[i] = b.Mirror()
	}
	return out
}

var band = Band{MinRR: 1.3, MaxRR: 5.0}

// swing highs at 1.1020 (idx 1), 1.1040 (idx 3) and 1.1100 (idx 5) with period 1
var structure = peaks(1.1000, 1.1020, 1.1000, 1.1040, 1.1000, 1.1100, 1.1000)

func TestSelectContinuesPastTooNear(t *testing.T) {
	// entry 1.1010, stop 10 pips: 1.1020 is 1.0R (too near), 1.1040 is 3.0R
	sel, ok := Select(models.Buy, 1.1010, 0.0010, structure, 1, band)
	if !ok {
		t.Fatalf("expected a target, got %+v", sel)
	}
	if sel.Price != 1.1040 {
		t.Fatalf("expected 1.1040, got %v", sel.Price)
	}
	if sel.Ratio < band.MinRR || sel.Ratio > band.MaxRR {
		t.Fatalf("ratio %v outside band", sel.Ratio)
	}
	if !sel.HasCandidate || sel.NearestRatio > 1.01 || sel.NearestRatio < 0.99 {
		t.Fatalf("nearest ratio %v", sel.NearestRatio)
	}
}

func TestSelectNoneQualifiesReportsNearest(t *testing.T) {
	// stop 1 pip: ratios 10, 30, 90 are all above the band
	sel, ok := Select(models.Buy, 1.1010, 0.0001, structure, 1, band)
	if ok {
		t.Fatalf("expected none, got %+v", sel)
	}
	if !sel.HasCandidate || sel.NearestRatio < 9.99 || sel.NearestRatio > 10.01 {
		t.Fatalf("nearest diagnostics %+v", sel)
	}
}

func TestSelectNoCandidates(t *testing.T) {
	sel, ok := Select(models.Buy, 1.2000, 0.0010, structure, 1, band)
	if ok || sel.HasCandidate {
		t.Fatalf("expected no candidates, got %+v", sel)
	}
}

func TestSelectSellMirror(t *testing.T) {
	buy, okBuy := Select(models.Buy, 1.1010, 0.0010, structure, 1, band)
	sell, okSell := Select(models.Sell, -1.1010, 0.0010, mirror(structure), 1, band)
	if okBuy != okSell || buy.Price != -sell.Price {
		t.Fatalf("buy %+v vs sell %+v", buy, sell)
	}
}

func TestSelectRatioAlwaysInBand(t *testing.T) {
	for entry := 1.0990; entry < 1.1110; entry += 0.0003 {
		for stop := 0.0002; stop < 0.0050; stop += 0.0004 {
			sel, ok := Select(models.Buy, entry, stop, structure, 1, band)
			if ok && !band.Contains(sel.Ratio) {
				t.Fatalf("entry=%v stop=%v ratio %v", entry, stop, sel.Ratio)
			}
			if ok && sel.Price <= entry {
				t.Fatalf("target %v not beyond entry %v", sel.Price, entry)
			}
		}
	}
}

func TestSelectZeroStop(t *testing.T) {
	if _, ok := Select(models.Buy, 1.1010, 0, structure, 1, band); ok {
		t.Fatal("zero stop must not select")
	}
}
