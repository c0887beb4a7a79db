package service

import (
	"context"

	"FinSqueeze/internal/domain/models"
)

// ConsolidationDetector scans bars for tight-range windows.
type ConsolidationDetector interface {
	Detect(bars []models.Bar, minDuration int) []models.ConsolidationPeriod
}

// SqueezeClassifier classifies one timeframe view.
type SqueezeClassifier interface {
	Classify(bars []models.Bar, timeframe string) models.SqueezeState
}

// MultiTimeframeAggregator runs the classifier across every timeframe view.
type MultiTimeframeAggregator interface {
	Analyze(ctx context.Context, symbol string, bars []models.Bar) (*models.MultiTimeframeSqueezeAnalysis, error)
}

// TransitionMiner links historical consolidations to their breakouts.
type TransitionMiner interface {
	Mine(bars []models.Bar, periods []models.ConsolidationPeriod) []models.TransitionPattern
}

// BacktestSimulator replays mined transitions into aggregate statistics.
type BacktestSimulator interface {
	Run(ctx context.Context, symbol string, bars []models.Bar) (*models.BacktestResult, error)
}

// ConfidenceScorer fuses current state and history into a confidence figure.
type ConfidenceScorer interface {
	Score(in models.ConfidenceInputs) models.ConfidenceAssessment
	ScoreEnhanced(in models.EnhancedInputs) models.ConfidenceAssessment
}
