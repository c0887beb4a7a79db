package models

import "time"

// IndicatorSnapshot is a compact technical summary of the latest bars.
type IndicatorSnapshot struct {
	RSI                float64 `json:"rsi"`
	EMA                float64 `json:"ema"`
	ATR                float64 `json:"atr"`
	Slope              float64 `json:"slope"`
	Momentum           float64 `json:"momentum"`
	MACDHistogram      float64 `json:"macd_histogram"`
	RealizedVolatility float64 `json:"realized_volatility"`
	Bollinger          Band    `json:"bollinger"`
	Keltner            Band    `json:"keltner"`
}

// AggregateAnalysis is the consolidated view of every engine output for one instrument.
type AggregateAnalysis struct {
	ID             string                         `json:"id"`
	Symbol         string                         `json:"symbol"`
	Window         int                            `json:"window"`
	Timestamp      time.Time                      `json:"timestamp"`
	Quote          *Quote                         `json:"quote,omitempty"`
	Consolidations []ConsolidationPeriod          `json:"consolidations,omitempty"`
	Squeeze        *MultiTimeframeSqueezeAnalysis `json:"squeeze,omitempty"`
	Backtest       *BacktestResult                `json:"backtest,omitempty"`
	Indicators     *IndicatorSnapshot             `json:"indicators,omitempty"`
	Confidence     *ConfidenceAssessment          `json:"confidence,omitempty"`
	Enhanced       *ConfidenceAssessment          `json:"enhanced,omitempty"`
	Errors         map[string]string              `json:"errors,omitempty"`
}
