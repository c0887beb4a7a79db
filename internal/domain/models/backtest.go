package models

import "time"

// PatternStats aggregates outcomes for one pattern key.
type PatternStats struct {
	Key           string  `json:"key"`
	Frequency     int     `json:"frequency"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`   // percent
	AverageReturn float64 `json:"average_return"` // percent
}

type PatternLabel string

const (
	LabelLegendary PatternLabel = "LEGENDARY"
	LabelElite     PatternLabel = "ELITE"
	LabelExcellent PatternLabel = "EXCELLENT"
	LabelGood      PatternLabel = "GOOD"
	LabelAverage   PatternLabel = "AVERAGE"
	LabelPoor      PatternLabel = "POOR"
)

// CombinedPattern is a row of the timeframe-count x volume x premium table.
type CombinedPattern struct {
	PatternStats
	TimeframeBucket string       `json:"timeframe_bucket"`
	VolumeBucket    string       `json:"volume_bucket"`
	PremiumBucket   string       `json:"premium_bucket"`
	Label           PatternLabel `json:"label"`
	ConfidenceScore float64      `json:"confidence_score"`
	Score           float64      `json:"score"`
}

type BacktestResult struct {
	Symbol              string                  `json:"symbol"`
	Window              int                     `json:"window"`
	From                time.Time               `json:"from"`
	To                  time.Time               `json:"to"`
	Consolidations      int                     `json:"consolidations"`
	TotalPatterns       int                     `json:"total_patterns"`
	SuccessfulBreakouts int                     `json:"successful_breakouts"`
	SuccessRate         float64                 `json:"success_rate"`
	AverageReturn       float64                 `json:"average_return"`
	Best                *TransitionPattern      `json:"best,omitempty"`
	Worst               *TransitionPattern      `json:"worst,omitempty"`
	TimeframeStats      map[string]PatternStats `json:"timeframe_stats"`
	VolumeStats         map[string]PatternStats `json:"volume_stats"`
	PremiumStats        map[string]PatternStats `json:"premium_stats"`
	Combined            []CombinedPattern       `json:"combined"`
	HolyGrail           []CombinedPattern       `json:"holy_grail"`
	ColorPatterns       []PatternStats          `json:"color_patterns"`
	MomentumPatterns    []PatternStats          `json:"momentum_patterns"`
	Patterns            []TransitionPattern     `json:"-"`
}
