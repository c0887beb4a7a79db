package models

import "time"

// PriceRange is the high/low envelope of a consolidation window.
type PriceRange struct {
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	PercentRange float64 `json:"percent_range"`
}

// ConsolidationPeriod is a window whose range stayed under the consolidation threshold.
// Overlapping periods are kept as-is; the most recent one is last.
type ConsolidationPeriod struct {
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	StartIndex int        `json:"start_index"`
	EndIndex   int        `json:"end_index"`
	Duration   int        `json:"duration"`
	Range      PriceRange `json:"range"`
	AvgVolume  float64    `json:"avg_volume"`
	Strength   float64    `json:"strength"` // 0-100, tighter is higher
}
