package repository

import (
	"fmt"

	domrepo "FinSqueeze/internal/domain/repository"
)

// BarSchema returns idempotent DDL for the per-timeframe bar tables.
func BarSchema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range domrepo.AllTimeframes {
		table, _ := tableForTF(database, tf)
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    symbol LowCardinality(String),
    bucket DateTime64(3, 'UTC'),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    volume Float64,
    updated_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (symbol, bucket)`, table))
	}
	return stmts
}

func reportSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_reports (
    id String,
    symbol LowCardinality(String),
    window_bars UInt32,
    from_ts DateTime64(3, 'UTC'),
    to_ts DateTime64(3, 'UTC'),
    consolidations UInt32,
    total_patterns UInt32,
    successful UInt32,
    success_rate Float64,
    average_return Float64,
    holy_grail UInt32,
    payload String CODEC(ZSTD),
    created_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, created_at)`, database),
	}
}
