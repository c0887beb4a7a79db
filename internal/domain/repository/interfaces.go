package repository

import (
	"context"

	"FinSqueeze/internal/domain/models"
)

// AnalysisPublisher fans engine results out to downstream consumers.
type AnalysisPublisher interface {
	PublishAnalysis(ctx context.Context, a *models.AggregateAnalysis) error
	Close() error
}

// ReportStorage keeps an append-only audit of backtest runs.
type ReportStorage interface {
	Init(ctx context.Context) error
	StoreBacktest(ctx context.Context, id string, r *models.BacktestResult) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records business-level counters; implementations must be safe for concurrent use.
type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
	RecordConfidence(symbol string, score float64)
	RecordMessageSent(backend, symbol string)
}
