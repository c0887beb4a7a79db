package models

type ConfidenceComponent struct {
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
	Available bool    `json:"available"`
}

// ConfidenceAssessment is the fused breakout confidence.
// Component MaxPoints always sum to 100; unavailable components score 0.
type ConfidenceAssessment struct {
	Score      float64               `json:"score"`
	Rating     string                `json:"rating"`
	Components []ConfidenceComponent `json:"components"`
	Insights   []string              `json:"insights,omitempty"`
}

// ConfidenceInputs feeds the base scorer. Nil fields mark missing signals.
type ConfidenceInputs struct {
	Consolidation *ConsolidationPeriod
	Squeeze       *MultiTimeframeSqueezeAnalysis
	VolumeRatio   *float64
	Backtest      *BacktestResult
}

// EnhancedInputs feeds the cross-validated scorer.
type EnhancedInputs struct {
	Squeeze         *MultiTimeframeSqueezeAnalysis
	VolumeRatio     *float64
	PremiumBehavior string
	Backtest        *BacktestResult
	Consolidation   *ConsolidationPeriod
	Price           float64
}
