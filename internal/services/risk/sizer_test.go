package risk

import (
	"errors"
	"math"
	"testing"
)

func fx() Params {
	return Params{Balance: 10000, RiskPercent: 1, StopLossPips: 10, PipValue: 10, VolumeStep: 1000, VolumeMin: 1000, VolumeMax: 10000000}
}

func TestSizeScenario(t *testing.T) {
	p := fx()
	if p.RiskAmount() != 100 {
		t.Fatalf("risk amount %v", p.RiskAmount())
	}
	got, err := Size(p)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if got != 1000 {
		t.Fatalf("expected 1000, got %v", got)
	}
}

func TestSizeFloorsToStep(t *testing.T) {
	p := Params{Balance: 10000, RiskPercent: 1, StopLossPips: 10, PipValue: 0.0001, VolumeStep: 1000, VolumeMin: 1000, VolumeMax: 10000000}
	got, err := Size(p)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	// raw = 100 / 0.001 = 100000
	if got != 100000 {
		t.Fatalf("expected 100000, got %v", got)
	}
	p.StopLossPips = 13
	got, _ = Size(p)
	// raw = 76923.07 -> 76000
	if got != 76000 {
		t.Fatalf("expected 76000, got %v", got)
	}
}

func TestSizeClampsToMax(t *testing.T) {
	p := fx()
	p.PipValue = 0.000001
	p.VolumeMax = 50000
	got, err := Size(p)
	if err != nil || got != 50000 {
		t.Fatalf("expected clamp to max, got %v, %v", got, err)
	}
}

func TestSizeZeroStop(t *testing.T) {
	p := fx()
	p.StopLossPips = 0
	got, err := Size(p)
	if !errors.Is(err, ErrZeroStop) || got != 0 {
		t.Fatalf("expected zero stop, got %v, %v", got, err)
	}
}

func TestSizeNonPositiveBalanceRejected(t *testing.T) {
	p := fx()
	p.Balance = 0
	got, err := Size(p)
	if !errors.Is(err, ErrBelowMinimum) || got != 0 {
		t.Fatalf("expected reject, got %v, %v", got, err)
	}
}

func TestSizeInvalidVolumes(t *testing.T) {
	p := fx()
	p.VolumeMin = 1500
	if _, err := Size(p); !errors.Is(err, ErrBadVolume) {
		t.Fatalf("expected bad volume, got %v", err)
	}
}

func TestSizeAlwaysOnStepWithinBounds(t *testing.T) {
	p := Params{RiskPercent: 1.5, PipValue: 0.0001, VolumeStep: 1000, VolumeMin: 1000, VolumeMax: 500000}
	for balance := 0.0; balance <= 50000; balance += 1234.5 {
		for sl := 0.0; sl <= 60; sl += 3.7 {
			p.Balance, p.StopLossPips = balance, sl
			got, err := Size(p)
			if err != nil {
				if got != 0 {
					t.Fatalf("error with non-zero size %v", got)
				}
				continue
			}
			r := got / p.VolumeStep
			if math.Abs(r-math.Round(r)) > 1e-9 || got < p.VolumeMin || got > p.VolumeMax {
				t.Fatalf("balance=%v sl=%v: size %v off grid", balance, sl, got)
			}
		}
	}
}
