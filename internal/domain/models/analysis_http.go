package models

// Requests for engine HTTP endpoints. Window may be given in bars or as a span ("400d").

type AnalysisRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Window int    `query:"window" json:"window" default:"300" validate:"gte=30,lte=5000"`
	Span   string `query:"span" json:"span"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
}

type ConsolidationRequest struct {
	Symbol      string `query:"symbol" json:"symbol" validate:"required"`
	Window      int    `query:"window" json:"window" default:"300" validate:"gte=10,lte=5000"`
	Span        string `query:"span" json:"span"`
	TF          string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	MinDuration int    `query:"min_duration" json:"min_duration" default:"20" validate:"gte=2,lte=500"`
	Ranked      bool   `query:"ranked" json:"ranked"`
}

type BacktestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Years  int    `query:"years" json:"years" default:"2" validate:"gte=1,lte=20"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
}

type MemoRequest struct {
	Symbol string `param:"symbol" validate:"required"`
}
