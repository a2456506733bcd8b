package models

// Requests for engine HTTP endpoints.

type LevelsRequest struct {
	State string `query:"state" json:"state" validate:"omitempty,oneof=found swept confirmed invalidated entry_done"`
}

type BiasRequest struct {
	N int `query:"n" json:"n" default:"100" validate:"gte=1,lte=5000"`
}

type BiasModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=auto bullish bearish"`
}

type BarsRequest struct {
	From  string `query:"from" json:"from" validate:"required"`
	To    string `query:"to" json:"to" validate:"required"`
	TF    string `query:"tf" json:"tf" default:"3m" validate:"oneof=1m 3m 5m 15m 1h 4h"`
	Limit int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}
