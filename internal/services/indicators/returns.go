package indicators

import (
	"math"

	"FinSqueeze/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}); nil for fewer than two bars.
func LogReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Close, bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the annualized sample deviation of the latest window of log returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window > len(logReturns) {
		window = len(logReturns)
	}
	if window <= 1 {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of trading bars per year for a timeframe.
func BarsPerYear(tf string) float64 {
	const sessionMinutes = 390
	switch tf {
	case "1m":
		return 252 * sessionMinutes
	case "5m":
		return 252 * sessionMinutes / 5
	case "15m":
		return 252 * sessionMinutes / 15
	case "30m":
		return 252 * sessionMinutes / 30
	case "1h":
		return 252 * 6.5
	case "4h":
		return 252 * 2
	default:
		return 252
	}
}
