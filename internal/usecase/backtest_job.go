package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	xlogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/queue"

	"github.com/google/uuid"
)

const BacktestRefreshJob = "backtest.refresh"

// BacktestJobPayload is the queued request to recompute an instrument's backtest.
type BacktestJobPayload struct {
	Symbol    string `json:"symbol"`
	Years     int    `json:"years,omitempty"`
	Timeframe string `json:"tf,omitempty"`
}

// BacktestJob recomputes a backtest in the background, warming the memo and
// auditing the result.
type BacktestJob struct {
	engine  *EngineUseCase
	reports domrepo.ReportStorage
	logger  *xlogger.Logger
}

var _ queue.Job = (*BacktestJob)(nil)

func NewBacktestJob(engine *EngineUseCase, reports domrepo.ReportStorage, l *xlogger.Logger) *BacktestJob {
	if l == nil {
		l = xlogger.Nop()
	}
	return &BacktestJob{engine: engine, reports: reports, logger: l}
}

func (j *BacktestJob) Name() string { return "backtest-refresh" }

func (j *BacktestJob) Type() string { return BacktestRefreshJob }

func (j *BacktestJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[BacktestJobPayload](payload)
	if err != nil {
		return err
	}
	res, err := j.engine.Backtest(ctx, BacktestParams{
		Symbol:    p.Symbol,
		Years:     p.Years,
		Timeframe: domrepo.NormalizeTimeframe(p.Timeframe),
	})
	if errors.Is(err, models.ErrInsufficientHistory) {
		j.logger.Warn("backtest skipped", xlogger.Symbol(p.Symbol), xlogger.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("backtest %s: %w", p.Symbol, err)
	}
	if j.reports != nil {
		if err := j.reports.StoreBacktest(ctx, uuid.NewString(), res); err != nil {
			return fmt.Errorf("store backtest %s: %w", p.Symbol, err)
		}
	}
	j.logger.Info("backtest refreshed",
		xlogger.Symbol(res.Symbol),
		xlogger.Int("patterns", res.TotalPatterns),
		xlogger.Float64("success_rate", res.SuccessRate))
	return nil
}
