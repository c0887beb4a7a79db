package indicators

import (
	"math"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes ...float64) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

func TestRSIBounds(t *testing.T) {
	series := [][]float64{
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
		{10, 12, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19, 3, 20},
		{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
	}
	for _, s := range series {
		v := RSI(s, 14)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.Equal(t, 100.0, RSI(series[0], 14))
	assert.Equal(t, 0.0, RSI(series[1], 14))
	assert.Equal(t, 50.0, RSI(series[3], 14))
}

func TestRSIShortSeriesIsNeutral(t *testing.T) {
	assert.Equal(t, 50.0, RSI([]float64{1, 2, 3}, 14))
	assert.Equal(t, 50.0, RSI([]float64{42}, 14))
	assert.Equal(t, 50.0, RSI(nil, 14))
}

func TestEMASeedEqualsSMA(t *testing.T) {
	prices := []float64{2, 4, 6, 8, 10, 12, 14}
	ema := EMA(prices, 3)
	require.Len(t, ema, 5)
	assert.InDelta(t, 4.0, ema[0], 1e-12)

	// 2/(3+1) = 0.5
	assert.InDelta(t, 8*0.5+4*0.5, ema[1], 1e-12)
}

func TestEMAShortInputIsEmpty(t *testing.T) {
	assert.Empty(t, EMA([]float64{1, 2}, 3))
	assert.InDelta(t, 1.5, LastEMA([]float64{1, 2}, 3), 1e-12)
}

func TestATRFallbacks(t *testing.T) {
	assert.Equal(t, 1.0, ATR(nil, 14))
	assert.Equal(t, 1.0, ATR(barsFromCloses(10), 14))

	bars := barsFromCloses(10, 10, 10)
	// each bar has high-low = 2 and no gaps; two true ranges available
	assert.InDelta(t, 2.0, ATR(bars, 14), 1e-12)
}

func TestBollingerDegradesOnShortInput(t *testing.T) {
	b := Bollinger([]float64{1, 3}, 20, 2)
	assert.InDelta(t, 2.0, b.Middle, 1e-12)
	assert.InDelta(t, 4.0, b.Width(), 1e-12)

	flat := Bollinger([]float64{5, 5, 5, 5}, 10, 2)
	assert.Equal(t, 0.0, flat.Width())
}

func TestKeltnerUsesATR(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 10, 10)
	k := Keltner(bars, 10, 1.5)
	assert.InDelta(t, 10.0, k.Middle, 1e-12)
	assert.InDelta(t, 2*1.5*2.0, k.Width(), 1e-12)
}

func TestLinearRegressionSlope(t *testing.T) {
	assert.InDelta(t, 2.0, LinearRegressionSlope([]float64{1, 3, 5, 7, 9}), 1e-9)
	assert.InDelta(t, 0.0, LinearRegressionSlope([]float64{4, 4, 4}), 1e-9)
	assert.Equal(t, 0.0, LinearRegressionSlope([]float64{4}))
}

func TestMomentum(t *testing.T) {
	assert.Equal(t, 3.0, Momentum([]float64{1, 2, 3, 4}, 10))
	assert.Equal(t, 2.0, Momentum([]float64{1, 2, 3, 4}, 3))
	assert.Equal(t, 0.0, Momentum(nil, 3))
}

func TestSafeDiv(t *testing.T) {
	v := SafeDiv(1, 0)
	assert.False(t, math.IsInf(v, 0))
	assert.False(t, math.IsNaN(v))
	assert.Equal(t, 2.0, SafeDiv(4, 2))
}

func TestSnapshotTotalOnShortInput(t *testing.T) {
	s := Snapshot(barsFromCloses(10, 11), "1d")
	assert.Equal(t, 50.0, s.RSI)
	assert.Equal(t, 0.0, s.MACDHistogram)
	assert.False(t, math.IsNaN(s.RealizedVolatility))
}

func TestMACDHistogramTrend(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)*float64(i)*0.05
	}
	h := MACDHistogram(barsFromCloses(closes...))
	assert.False(t, math.IsNaN(h))
	assert.Greater(t, h, 0.0)
}
