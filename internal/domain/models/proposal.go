package models

import (
	"fmt"
	"time"
)

// Direction is the side of a proposed trade.
type Direction int

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Buy", "buy", "BUY":
		*d = Buy
	case "Sell", "sell", "SELL":
		*d = Sell
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// Sign is +1 for Buy and -1 for Sell.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

// TradeProposal is a fully specified market order intent handed to execution.
type TradeProposal struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Direction       Direction `json:"direction"`
	EntryPrice      float64   `json:"entry_price"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	Quantity        float64   `json:"quantity"`
	RewardRisk      float64   `json:"reward_risk"`
	StopLossPips    float64   `json:"stop_loss_pips"`
	LevelID         LevelID   `json:"level_id"`
	LevelPrice      float64   `json:"level_price"`
	Label           string    `json:"label"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProposalLabel builds the order label attached to a submitted proposal.
func ProposalLabel(d Direction, at time.Time) string {
	return fmt.Sprintf("LQS_%s_%s", d, at.UTC().Format("200601021504"))
}

// ExecutionReport is the execution collaborator's answer for one proposal.
type ExecutionReport struct {
	ProposalID string    `json:"proposal_id"`
	Symbol     string    `json:"symbol"`
	Accepted   bool      `json:"accepted"`
	FillPrice  float64   `json:"fill_price,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}
