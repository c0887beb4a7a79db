package indicators

import (
	"math"

	"FinSqueeze/internal/domain/models"
)

// TrueRange of bar i relative to the previous close.
func TrueRange(bars []models.Bar, i int) float64 {
	hl := bars[i].High - bars[i].Low
	if i == 0 {
		return hl
	}
	prev := bars[i-1].Close
	return math.Max(hl, math.Max(math.Abs(bars[i].High-prev), math.Abs(bars[i].Low-prev)))
}

// ATR is the mean true range over min(period, len-1) most recent bars.
// Returns 1 for fewer than two bars so callers can divide by it.
func ATR(bars []models.Bar, period int) float64 {
	if len(bars) < 2 {
		return 1
	}
	n := period
	if n <= 0 || n > len(bars)-1 {
		n = len(bars) - 1
	}
	sum := 0.0
	for i := len(bars) - n; i < len(bars); i++ {
		sum += TrueRange(bars, i)
	}
	return sum / float64(n)
}

// Bollinger computes SMA +/- k standard deviations over the last period prices.
// Shorter input uses every available price.
func Bollinger(prices []float64, period int, k float64) models.Band {
	if len(prices) == 0 {
		return models.Band{}
	}
	mid := SMA(prices, period)
	sd := StdDev(prices, period)
	return models.Band{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}
}

// Keltner computes an EMA midline of closes +/- atrMult * ATR.
func Keltner(bars []models.Bar, period int, atrMult float64) models.Band {
	if len(bars) == 0 {
		return models.Band{}
	}
	mid := LastEMA(models.Closes(bars), period)
	atr := ATR(bars, period)
	return models.Band{Upper: mid + atrMult*atr, Middle: mid, Lower: mid - atrMult*atr}
}

// AverageVolume is the mean volume of the given bars.
func AverageVolume(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}
