package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	svcmetrics "FinSqueeze/internal/service/metrics"
	pkgcache "FinSqueeze/pkg/cache"
	"FinSqueeze/pkg/util"
)

const memoPrefix = "memo"

// AnalysisMemo caches engine results keyed by (instrument, window). Every entry for
// an instrument is dropped by Invalidate, which bar-update events trigger.
type AnalysisMemo struct {
	store pkgcache.Service
	ttl   time.Duration
}

func NewAnalysisMemo(store pkgcache.Service, ttl time.Duration) *AnalysisMemo {
	return &AnalysisMemo{store: store, ttl: ttl}
}

func memoKey(symbol string, window int, kind string) string {
	return pkgcache.Key(memoPrefix, util.NormalizeSymbol(symbol), window, kind)
}

// Get loads a memoized result into dest. A miss returns false with no error.
func (m *AnalysisMemo) Get(ctx context.Context, symbol string, window int, kind string, dest interface{}) (bool, error) {
	err := m.store.Get(ctx, memoKey(symbol, window, kind), dest)
	switch {
	case err == nil:
		svcmetrics.MemoLookups.WithLabelValues("hit").Inc()
		return true, nil
	case errors.Is(err, pkgcache.ErrCacheMiss):
		svcmetrics.MemoLookups.WithLabelValues("miss").Inc()
		return false, nil
	default:
		svcmetrics.MemoLookups.WithLabelValues("error").Inc()
		return false, err
	}
}

func (m *AnalysisMemo) Set(ctx context.Context, symbol string, window int, kind string, v interface{}) error {
	return m.store.Set(ctx, memoKey(symbol, window, kind), v, m.ttl)
}

// Invalidate removes every memoized window for symbol.
func (m *AnalysisMemo) Invalidate(ctx context.Context, symbol string) (int, error) {
	n, err := m.store.DeletePrefix(ctx, pkgcache.Key(memoPrefix, util.NormalizeSymbol(symbol))+":")
	if err != nil {
		return n, fmt.Errorf("invalidate memo for %s: %w", symbol, err)
	}
	return n, nil
}

// Remember returns the memoized value or computes and stores it. Cache failures
// never fail the call; errors from compute are returned and not cached.
func Remember[T any](ctx context.Context, m *AnalysisMemo, symbol string, window int, kind string, compute func() (T, error)) (T, error) {
	var cached T
	if m == nil {
		return compute()
	}
	if ok, _ := m.Get(ctx, symbol, window, kind, &cached); ok {
		return cached, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	_ = m.Set(ctx, symbol, window, kind, v)
	return v, nil
}
