package models

import "time"

// EventKind tags one decision point of the engine.
type EventKind string

const (
	EventStructureBar       EventKind = "structure_bar"
	EventDayReset           EventKind = "day_reset"
	EventRegistryBuilt      EventKind = "registry_built"
	EventLevelFound         EventKind = "level_found"
	EventLevelSwept         EventKind = "level_swept"
	EventBOSConfirmed       EventKind = "bos_confirmed"
	EventBOSInvalidated     EventKind = "bos_invalidated"
	EventTradeProposed      EventKind = "trade_proposed"
	EventSessionClosed      EventKind = "session_closed"
	EventAlreadyTraded      EventKind = "already_traded"
	EventNeutralBias        EventKind = "neutral_bias"
	EventBiasMismatch       EventKind = "bias_mismatch"
	EventNoBars             EventKind = "no_bars"
	EventStopAdjusted       EventKind = "stop_adjusted"
	EventStopRejected       EventKind = "stop_rejected"
	EventTakeProfitMissing  EventKind = "take_profit_missing"
	EventTakeProfitRejected EventKind = "take_profit_rejected"
	EventSizeRejected       EventKind = "size_rejected"
	EventExecutionFailed    EventKind = "execution_failed"
	EventExecutionReport    EventKind = "execution_report"
	EventStaleTick          EventKind = "stale_tick"
	EventBrokerUnavailable  EventKind = "broker_unavailable"
)

// EventLevel is the severity attached to an event.
type EventLevel string

const (
	LevelDebug EventLevel = "debug"
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
)

// Severity maps a kind to its default level.
func (k EventKind) Severity() EventLevel {
	switch k {
	case EventSessionClosed, EventAlreadyTraded, EventNeutralBias, EventBiasMismatch, EventNoBars, EventStructureBar, EventStaleTick:
		return LevelDebug
	case EventStopRejected, EventTakeProfitMissing, EventTakeProfitRejected, EventSizeRejected, EventExecutionFailed, EventBOSInvalidated, EventBrokerUnavailable:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// Event is one structured decision record.
type Event struct {
	ID      string             `json:"id"`
	Kind    EventKind          `json:"kind"`
	Level   EventLevel         `json:"level"`
	Symbol  string             `json:"symbol"`
	At      time.Time          `json:"at"`
	LevelID LevelID            `json:"level_id,omitempty"`
	Values  map[string]float64 `json:"values,omitempty"`
	Note    string             `json:"note,omitempty"`
}
