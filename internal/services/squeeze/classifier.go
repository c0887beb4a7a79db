package squeeze

import (
	"FinSqueeze/internal/domain/models"
	domsvc "FinSqueeze/internal/domain/service"
	"FinSqueeze/internal/services/indicators"
)

const (
	bandPeriod       = 10
	bollingerStdDev  = 2.0
	keltnerATRMult   = 1.5
	firingMultiple   = 1.5
	momentumLookback = 10
)

// Classifier compares Bollinger and Keltner widths on a single timeframe view.
type Classifier struct{}

var _ domsvc.SqueezeClassifier = (*Classifier)(nil)

func NewClassifier() *Classifier { return &Classifier{} }

// Classify returns the squeeze reading for bars. Status is derived from the band
// comparison on this call only; no state carries over between calls.
func (c *Classifier) Classify(bars []models.Bar, timeframe string) models.SqueezeState {
	st := models.SqueezeState{Timeframe: timeframe, Bars: len(bars)}
	if len(bars) == 0 {
		st.Status = models.SqueezeCooling
		st.Color = models.ColorRed
		st.Momentum = models.Momentum{Color: models.MomentumBlue, Direction: models.BullishDeceleration}
		return st
	}

	closes := models.Closes(bars)
	st.Bollinger = indicators.Bollinger(closes, bandPeriod, bollingerStdDev)
	st.Keltner = indicators.Keltner(bars, bandPeriod, keltnerATRMult)
	st.BollingerWidth = st.Bollinger.Width()
	st.KeltnerWidth = st.Keltner.Width()
	st.CompressionLevel = indicators.SafeDiv(st.BollingerWidth, st.KeltnerWidth)
	st.IsSqueezed = st.BollingerWidth < st.KeltnerWidth

	firing := st.BollingerWidth > st.KeltnerWidth*firingMultiple
	switch {
	case firing:
		st.Status = models.SqueezeFiring
	case st.IsSqueezed:
		st.Status = models.SqueezeBuilding
	default:
		st.Status = models.SqueezeCooling
	}
	st.Color = compressionColor(firing, st.CompressionLevel)
	if st.KeltnerWidth == 0 {
		// no range at all: there is nothing to compress
		st.Color = models.ColorRed
	}
	st.Momentum = momentumOf(closes)
	return st
}

func compressionColor(firing bool, level float64) models.CompressionColor {
	switch {
	case firing:
		return models.ColorGreen
	case level > 0.8:
		return models.ColorRed
	case level > 0.6:
		return models.ColorBlack
	default:
		return models.ColorYellow
	}
}

// momentumOf compares the trailing-window momentum with the window one bar earlier.
func momentumOf(closes []float64) models.Momentum {
	cur := indicators.Momentum(closes, momentumLookback)
	prev := 0.0
	if len(closes) > 1 {
		prev = indicators.Momentum(closes[:len(closes)-1], momentumLookback)
	}

	m := models.Momentum{Value: cur, Previous: prev}
	switch {
	case cur >= 0 && cur >= prev:
		m.Direction, m.Color = models.BullishAcceleration, models.MomentumAqua
	case cur >= 0:
		m.Direction, m.Color = models.BullishDeceleration, models.MomentumBlue
	case cur >= prev:
		m.Direction, m.Color = models.BearishDeceleration, models.MomentumYellow
	default:
		m.Direction, m.Color = models.BearishAcceleration, models.MomentumRed
	}
	return m
}
