package fractal

import (
	"reflect"
	"testing"
	"time"

	"LiqSweep/internal/domain/models"
)

func barsFromLows(lows ...float64) []models.Bar {
	t0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(lows))
	for i, l := range lows {
		out[i] = models.Bar{OpenTime: t0.Add(time.Duration(i) * time.Hour), Low: l, High: l + 0.0010, Open: l + 0.0004, Close: l + 0.0006}
	}
	return out
}

func TestLowsStrictWindow(t *testing.T) {
	bars := barsFromLows(1.2, 1.19, 1.18, 1.17, 1.18, 1.19, 1.2, 1.21)
	got := Lows(bars, 3)
	if len(got) != 1 {
		t.Fatalf("expected one fractal, got %d", len(got))
	}
	if got[0].Index != 3 || got[0].Price != 1.17 {
		t.Fatalf("unexpected fractal %+v", got[0])
	}
}

func TestLowsEqualNeighbourIsNotFractal(t *testing.T) {
	bars := barsFromLows(1.2, 1.19, 1.18, 1.17, 1.17, 1.19, 1.2, 1.21)
	if got := Lows(bars, 3); len(got) != 0 {
		t.Fatalf("expected no fractal on a flat bottom, got %+v", got)
	}
}

func TestLowsNeedFullWindow(t *testing.T) {
	bars := barsFromLows(1.17, 1.18, 1.19, 1.2)
	if got := Lows(bars, 3); len(got) != 0 {
		t.Fatalf("edge bar must not be a fractal, got %+v", got)
	}
}

func TestHighsMirrorLows(t *testing.T) {
	bars := barsFromLows(1.2, 1.19, 1.18, 1.17, 1.18, 1.19, 1.2, 1.21, 1.19, 1.18)
	mirrored := make([]models.Bar, len(bars))
	for i, b := range bars {
		mirrored[i] = b.Mirror()
	}
	lows := Lows(bars, 2)
	highs := Highs(mirrored, 2)
	if len(lows) != len(highs) {
		t.Fatalf("lows=%d highs=%d", len(lows), len(highs))
	}
	for i := range lows {
		if lows[i].Index != highs[i].Index || lows[i].Price != -highs[i].Price {
			t.Fatalf("mismatch at %d: %+v vs %+v", i, lows[i], highs[i])
		}
	}
}

func TestDetectionIsIdempotent(t *testing.T) {
	bars := barsFromLows(1.2, 1.15, 1.18, 1.1, 1.18, 1.16, 1.19, 1.12, 1.2, 1.21, 1.22)
	first := Lows(bars, 1)
	second := Lows(bars, 1)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated detection differs: %v vs %v", first, second)
	}
	if len(first) != 4 {
		t.Fatalf("expected 4 fractals with period 1, got %d", len(first))
	}
}
