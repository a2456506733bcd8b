package models

import "time"

// DayState is the persisted engine context for one symbol.
type DayState struct {
	Symbol       string           `json:"symbol"`
	Day          string           `json:"day"`
	LastTradeDay string           `json:"last_trade_day,omitempty"`
	LastTickAt   time.Time        `json:"last_tick_at,omitempty"`
	RegistryDay  string           `json:"registry_day,omitempty"`
	RegistryBias Bias             `json:"registry_bias"`
	NextLevelID  LevelID          `json:"next_level_id"`
	Levels       []LiquidityLevel `json:"levels,omitempty"`
	LastProposal *TradeProposal   `json:"last_proposal,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
