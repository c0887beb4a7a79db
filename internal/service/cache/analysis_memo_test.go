package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"
	pkgcache "FinSqueeze/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemo(t *testing.T) *AnalysisMemo {
	t.Helper()
	store := pkgcache.NewLayeredCache(nil, pkgcache.WithLayeredMemory(pkgcache.WithMemoryCleanup(0)))
	t.Cleanup(func() { _ = store.Close() })
	return NewAnalysisMemo(store, time.Minute)
}

func TestRememberComputesOnce(t *testing.T) {
	memo := newMemo(t)
	ctx := context.Background()
	calls := 0
	compute := func() (*models.BacktestResult, error) {
		calls++
		return &models.BacktestResult{Symbol: "AAPL", TotalPatterns: 4}, nil
	}

	first, err := Remember(ctx, memo, "aapl", 300, "backtest", compute)
	require.NoError(t, err)
	second, err := Remember(ctx, memo, "AAPL", 300, "backtest", compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.TotalPatterns, second.TotalPatterns)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	memo := newMemo(t)
	calls := 0
	compute := func() (int, error) {
		calls++
		return 0, errors.New("upstream down")
	}
	_, err := Remember(context.Background(), memo, "MSFT", 300, "squeeze", compute)
	require.Error(t, err)
	_, err = Remember(context.Background(), memo, "MSFT", 300, "squeeze", compute)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestInvalidateDropsEveryWindow(t *testing.T) {
	memo := newMemo(t)
	ctx := context.Background()

	require.NoError(t, memo.Set(ctx, "AAPL", 300, "squeeze", 1))
	require.NoError(t, memo.Set(ctx, "AAPL", 500, "backtest", 2))
	require.NoError(t, memo.Set(ctx, "AAP", 300, "squeeze", 3))

	n, err := memo.Invalidate(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v int
	ok, err := memo.Get(ctx, "AAPL", 300, "squeeze", &v)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = memo.Get(ctx, "AAP", 300, "squeeze", &v)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
