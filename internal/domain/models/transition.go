package models

type BreakoutDirection string

const (
	BreakoutNone    BreakoutDirection = "none"
	BreakoutBullish BreakoutDirection = "bullish"
	BreakoutBearish BreakoutDirection = "bearish"
)

// SqueezeConditions captures the squeeze reading at the end of a consolidation.
type SqueezeConditions struct {
	Status             SqueezeStatus                `json:"status"`
	Color              CompressionColor             `json:"color"`
	IsSqueezed         bool                         `json:"is_squeezed"`
	CompressionLevel   float64                      `json:"compression_level"`
	MomentumDirection  MomentumDirection            `json:"momentum_direction"`
	SqueezedTimeframes []string                     `json:"squeezed_timeframes"`
	FiringTimeframes   []string                     `json:"firing_timeframes"`
	Colors             map[string]CompressionColor  `json:"colors"`
	Momentum           map[string]MomentumDirection `json:"momentum"`
}

// TransitionPattern is one historical consolidation and what happened after it.
type TransitionPattern struct {
	Consolidation    ConsolidationPeriod `json:"consolidation"`
	BreakoutOccurred bool                `json:"breakout_occurred"`
	Direction        BreakoutDirection   `json:"direction"`
	BreakoutIndex    int                 `json:"breakout_index"`
	BarsToBreakout   int                 `json:"bars_to_breakout"`
	MaxMove          float64             `json:"max_move"` // percent, favorable excursion
	Successful       bool                `json:"successful"`
	Resolved         bool                `json:"resolved"` // at least one follow bar to judge
	FollowBars       int                 `json:"follow_bars"`
	VolumeRatio      float64             `json:"volume_ratio"`
	Squeeze          SqueezeConditions   `json:"squeeze"`
	PremiumBehavior  string              `json:"premium_behavior"`
}
