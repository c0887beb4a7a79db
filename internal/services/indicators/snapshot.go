package indicators

import "FinSqueeze/internal/domain/models"

// Snapshot bundles the standard indicator set over the latest bars.
func Snapshot(bars []models.Bar, tf string) models.IndicatorSnapshot {
	if len(bars) == 0 {
		return models.IndicatorSnapshot{RSI: 50, ATR: 1}
	}
	closes := models.Closes(bars)
	tail := closes
	if len(tail) > 20 {
		tail = tail[len(tail)-20:]
	}
	return models.IndicatorSnapshot{
		RSI:                RSI(closes, 14),
		EMA:                LastEMA(closes, 20),
		ATR:                ATR(bars, 14),
		Slope:              LinearRegressionSlope(tail),
		Momentum:           Momentum(closes, 10),
		MACDHistogram:      MACDHistogram(bars),
		RealizedVolatility: RealizedVolatility(LogReturns(bars), 60, BarsPerYear(tf)),
		Bollinger:          Bollinger(closes, 20, 2),
		Keltner:            Keltner(bars, 20, 1.5),
	}
}
