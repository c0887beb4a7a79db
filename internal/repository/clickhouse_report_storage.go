package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	pkgch "FinSqueeze/pkg/clickhouse"
)

// CHReportStorage appends backtest runs to <database>.backtest_reports.
type CHReportStorage struct {
	client *pkgch.Client
	db     *sql.DB
	now    func() time.Time
}

var _ domrepo.ReportStorage = (*CHReportStorage)(nil)

func NewCHReportStorage(ch *pkgch.Client) *CHReportStorage {
	return &CHReportStorage{client: ch, db: ch.DB(), now: time.Now}
}

func (s *CHReportStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, reportSchema(s.client.Database()))
}

func (s *CHReportStorage) StoreBacktest(ctx context.Context, id string, r *models.BacktestResult) error {
	if r == nil {
		return fmt.Errorf("store backtest: nil result")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal backtest: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s.backtest_reports
        (id, symbol, window_bars, from_ts, to_ts, consolidations, total_patterns, successful,
         success_rate, average_return, holy_grail, payload, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.client.Database())

	_, err = s.db.ExecContext(ctx, q,
		id, r.Symbol, uint32(r.Window), r.From.UTC(), r.To.UTC(),
		uint32(r.Consolidations), uint32(r.TotalPatterns), uint32(r.SuccessfulBreakouts),
		r.SuccessRate, r.AverageReturn, uint32(len(r.HolyGrail)), string(payload), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert backtest report: %w", err)
	}
	return nil
}

func (s *CHReportStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the pool is owned by pkg/clickhouse.Client.
func (s *CHReportStorage) Close() error { return nil }
