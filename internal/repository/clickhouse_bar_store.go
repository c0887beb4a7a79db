package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	pkgch "FinSqueeze/pkg/clickhouse"
	applogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/util"
)

// CHBarStore implements BarStore over per-timeframe ClickHouse tables (bars_1m ... bars_1d).
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.BarStore = (*CHBarStore)(nil)

func NewCHBarStore(ch *pkgch.Client, l *applogger.Logger) *CHBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: ch.DB(), database: ch.Database(), l: l}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT bucket, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC`, table)
	return s.query(ctx, "get_bars", symbol, tf, false, q, util.NormalizeSymbol(symbol), from.UTC(), to.UTC())
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
        SELECT bucket, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?`, table)
	return s.query(ctx, "latest_bars", symbol, tf, true, q, util.NormalizeSymbol(symbol), n)
}

// query runs a bar select; desc results are reversed so callers always get ascending bars.
func (s *CHBarStore) query(ctx context.Context, op, symbol string, tf domrepo.Timeframe, desc bool, q string, args ...interface{}) ([]models.Bar, error) {
	start := time.Now()
	symbol = util.NormalizeSymbol(symbol)
	fail := func(stage string, err error) error {
		s.l.Error("clickhouse "+op+" "+stage+" error",
			applogger.Symbol(symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err))
		return &models.DataUnavailableError{Symbol: symbol, Err: fmt.Errorf("%s %s: %w", op, stage, err)}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		b := models.Bar{Symbol: symbol}
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fail("scan", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	if desc {
		reverseBars(out)
	}

	s.l.Debug("clickhouse "+op+" ok",
		applogger.Symbol(symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func reverseBars(b []models.Bar) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func tableForTF(database string, tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return fmt.Sprintf("%s.bars_%s", database, tf), nil
}
