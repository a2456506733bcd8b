package models

import (
	"fmt"
	"strings"
)

// Bias is the directional context derived from structure bars.
type Bias int

const (
	BiasNeutral Bias = iota
	BiasBullish
	BiasBearish
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// Mirror swaps bullish and bearish. Neutral maps to itself.
func (b Bias) Mirror() Bias {
	switch b {
	case BiasBullish:
		return BiasBearish
	case BiasBearish:
		return BiasBullish
	default:
		return BiasNeutral
	}
}

// Direction returns the trade side implied by the bias.
func (b Bias) Direction() (Direction, bool) {
	switch b {
	case BiasBullish:
		return Buy, true
	case BiasBearish:
		return Sell, true
	default:
		return 0, false
	}
}

func (b Bias) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bias) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "bullish":
		*b = BiasBullish
	case "bearish":
		*b = BiasBearish
	case "neutral", "":
		*b = BiasNeutral
	default:
		return fmt.Errorf("unknown bias %q", text)
	}
	return nil
}

// BiasMode selects automatic classification or a fixed manual bias.
type BiasMode string

const (
	BiasModeAuto    BiasMode = "auto"
	BiasModeBullish BiasMode = "bullish"
	BiasModeBearish BiasMode = "bearish"
)

// ParseBiasMode normalizes s; empty input means auto.
func ParseBiasMode(s string) (BiasMode, error) {
	switch m := BiasMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", BiasModeAuto:
		return BiasModeAuto, nil
	case BiasModeBullish, BiasModeBearish:
		return m, nil
	default:
		return "", fmt.Errorf("unknown bias mode %q", s)
	}
}

// Fixed returns the forced bias, if any.
func (m BiasMode) Fixed() (Bias, bool) {
	switch m {
	case BiasModeBullish:
		return BiasBullish, true
	case BiasModeBearish:
		return BiasBearish, true
	default:
		return BiasNeutral, false
	}
}
