package repository

import (
	"context"
	"time"

	"FinSqueeze/internal/domain/models"
)

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// BarStore provides read-only access to ordered bars. Implementations report
// fetch failures as *models.DataUnavailableError.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
}

// QuoteSource supplies the last-known quote for an instrument.
type QuoteSource interface {
	LastQuote(ctx context.Context, symbol string) (models.Quote, error)
}
