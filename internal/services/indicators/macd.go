package indicators

import (
	"time"

	"FinSqueeze/internal/domain/models"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// TimeSeries converts bars to a techan series. Periods are synthesized from the
// bar index so that duplicate or zero timestamps never drop candles.
func TimeSeries(bars []models.Bar) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for i, b := range bars {
		period := techan.NewTimePeriod(time.Unix(int64(i)*60, 0), time.Minute)
		candle := techan.NewCandle(period)
		candle.OpenPrice = big.NewDecimal(b.Open)
		candle.ClosePrice = big.NewDecimal(b.Close)
		candle.MaxPrice = big.NewDecimal(b.High)
		candle.MinPrice = big.NewDecimal(b.Low)
		candle.Volume = big.NewDecimal(b.Volume)
		series.AddCandle(candle)
	}
	return series
}

// MACDHistogram returns the latest 12/26/9 MACD histogram value, or 0 when
// there are not enough bars to seed the signal line.
func MACDHistogram(bars []models.Bar) float64 {
	if len(bars) < macdSlow+macdSignal {
		return 0
	}
	series := TimeSeries(bars)
	closes := techan.NewClosePriceIndicator(series)
	macd := techan.NewMACDIndicator(closes, macdFast, macdSlow)
	hist := techan.NewMACDHistogramIndicator(macd, macdSignal)
	return hist.Calculate(series.LastIndex()).Float()
}
