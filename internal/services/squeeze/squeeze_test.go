package squeeze

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// trendBars has no intrabar range and constant volume; closes step by step.
func trendBars(n int, step float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + float64(i)*step
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

// chopBars oscillate inside wide intrabar ranges, which keeps Bollinger inside Keltner.
func chopBars(n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + 0.2*math.Sin(float64(i))
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c + 2, Low: c - 2, Close: c, Volume: 1000}
	}
	return out
}

func TestClassifyFiringOnSteadyTrend(t *testing.T) {
	st := NewClassifier().Classify(trendBars(30, 1), "1d")

	assert.Greater(t, st.BollingerWidth, st.KeltnerWidth*1.5)
	assert.Equal(t, models.SqueezeFiring, st.Status)
	assert.Equal(t, models.ColorGreen, st.Color)
	assert.False(t, st.IsSqueezed)
}

func TestClassifyBuildingInChop(t *testing.T) {
	st := NewClassifier().Classify(chopBars(40), "1d")

	assert.True(t, st.IsSqueezed)
	assert.Equal(t, models.SqueezeBuilding, st.Status)
	assert.Equal(t, models.ColorYellow, st.Color)
}

func TestClassifyFlatWindowIsNotCompressed(t *testing.T) {
	st := NewClassifier().Classify(trendBars(30, 0), "1d")

	assert.Zero(t, st.KeltnerWidth)
	assert.Zero(t, st.BollingerWidth)
	assert.False(t, st.IsSqueezed)
	assert.Equal(t, models.SqueezeCooling, st.Status)
	assert.Equal(t, models.ColorRed, st.Color)
}

func TestSqueezeConsistency(t *testing.T) {
	c := NewClassifier()
	inputs := [][]models.Bar{trendBars(30, 1), trendBars(12, -0.5), chopBars(40), chopBars(3), trendBars(1, 1)}
	for _, bars := range inputs {
		st := c.Classify(bars, "1h")
		assert.Equal(t, st.BollingerWidth < st.KeltnerWidth, st.IsSqueezed)
		assert.False(t, math.IsNaN(st.CompressionLevel))
	}
}

func TestMomentumDirections(t *testing.T) {
	up := momentumOf([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12})
	assert.Equal(t, models.BullishAcceleration, up.Direction)
	assert.Equal(t, models.MomentumAqua, up.Color)

	fading := momentumOf([]float64{1, 5, 6, 7, 8, 9, 10, 11, 12, 13, 13})
	assert.Equal(t, models.BullishDeceleration, fading.Direction)

	down := momentumOf([]float64{20, 19, 18, 17, 16, 15, 14, 13, 12, 11, 9})
	assert.Equal(t, models.BearishAcceleration, down.Direction)
	assert.Equal(t, models.MomentumRed, down.Color)

	easing := momentumOf([]float64{20, 12, 11, 10, 9, 8, 7, 6, 5, 4, 4})
	assert.Equal(t, models.BearishDeceleration, easing.Direction)
}

func TestConsensusReasoning(t *testing.T) {
	states := make([]models.SqueezeState, 0, 7)
	for i := 0; i < 5; i++ {
		states = append(states, models.SqueezeState{IsSqueezed: true, Status: models.SqueezeBuilding, Color: models.ColorYellow,
			Momentum: models.Momentum{Direction: models.BullishAcceleration}})
	}
	for i := 0; i < 2; i++ {
		states = append(states, models.SqueezeState{Status: models.SqueezeFiring, Color: models.ColorGreen,
			Momentum: models.Momentum{Direction: models.BearishAcceleration}})
	}
	c := Consensus(states)

	assert.Equal(t, 5, c.Squeezed)
	assert.InDelta(t, 500.0/7, c.SqueezedPct, 1e-9)
	assert.Equal(t, "bullish", c.Dominant)
	assert.Contains(t, c.Reasoning, "high-probability squeeze setup developing")
	assert.NotContains(t, c.Reasoning, "active squeeze momentum release")
	assert.Contains(t, c.Reasoning, "extreme compression on multiple timeframes")

	states[0].Status, states[0].IsSqueezed = models.SqueezeFiring, false
	c = Consensus(states)
	assert.Contains(t, c.Reasoning, "active squeeze momentum release")
}

func TestMatchSignature(t *testing.T) {
	m := MatchSignature(6, 1, 2)
	assert.Equal(t, "Perfect Storm", m.Name)
	assert.Equal(t, 0, m.Distance)
	assert.Equal(t, 100.0, m.Similarity)

	m = MatchSignature(0, 6, 0)
	assert.Equal(t, "Exhaustion Fade", m.Name)
	assert.Equal(t, "41% historical success", m.Label)
}

func TestDetectCascade(t *testing.T) {
	mk := func(group string, d models.MomentumDirection) models.SqueezeState {
		return models.SqueezeState{Group: group, Momentum: models.Momentum{Direction: d}}
	}
	states := []models.SqueezeState{
		mk(GroupUltraShort, models.BullishAcceleration),
		mk(GroupUltraShort, models.BullishAcceleration),
		mk(GroupShort, models.BullishAcceleration),
		mk(GroupMedium, models.BullishDeceleration),
		mk(GroupLong, models.BullishDeceleration),
	}
	c := DetectCascade(states)
	require.True(t, c.Detected)
	assert.Equal(t, "continuation", c.Direction)

	states[3] = mk(GroupMedium, models.BearishDeceleration)
	states[4] = mk(GroupLong, models.BearishDeceleration)
	assert.Equal(t, "reversal", DetectCascade(states).Direction)

	states[4] = mk(GroupLong, models.BearishAcceleration)
	assert.False(t, DetectCascade(states).Detected)
}

func TestAggregatorKeepsOrderAndFlagsApproximation(t *testing.T) {
	agg := NewAggregator(nil)
	res, err := agg.Analyze(context.Background(), "ACME", trendBars(150, 0.3))
	require.NoError(t, err)
	require.Len(t, res.Timeframes, 7)

	for i, src := range DefaultSources() {
		assert.Equal(t, string(src.Timeframe), res.Timeframes[i].Timeframe)
		assert.Equal(t, src.Group, res.Timeframes[i].Group)
	}
	assert.True(t, res.Approximated)
	assert.False(t, res.Timeframes[6].Approximated)
	assert.True(t, res.Timeframes[0].Approximated)
	assert.ElementsMatch(t, []string{"4h"}, res.Groups[GroupMedium])
}

type stubStore struct {
	bars []models.Bar
	err  error
}

func (s stubStore) GetBars(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Bar, error) {
	return s.bars, s.err
}

func (s stubStore) GetLatestNBars(context.Context, string, int, domrepo.Timeframe) ([]models.Bar, error) {
	return s.bars, s.err
}

func TestAggregatorNativeSources(t *testing.T) {
	sources := []TimeframeSource{
		{Timeframe: domrepo.TF1h, Group: GroupShort, Length: 30, Native: true},
		{Timeframe: domrepo.TF1d, Group: GroupLong, Length: 30},
	}

	agg := NewAggregator(nil, WithSources(sources), WithBarStore(stubStore{bars: chopBars(30)}))
	res, err := agg.Analyze(context.Background(), "ACME", trendBars(60, 1))
	require.NoError(t, err)
	assert.False(t, res.Timeframes[0].Approximated)
	assert.Equal(t, models.SqueezeBuilding, res.Timeframes[0].Status)
	assert.Equal(t, models.SqueezeFiring, res.Timeframes[1].Status)

	agg = NewAggregator(nil, WithSources(sources), WithBarStore(stubStore{err: errors.New("down")}))
	res, err = agg.Analyze(context.Background(), "ACME", trendBars(60, 1))
	require.NoError(t, err)
	assert.True(t, res.Timeframes[0].Approximated)
}

func TestSliceView(t *testing.T) {
	xs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, []int{5, 6, 7}, sliceView(xs, 2, 3))
	assert.Equal(t, []int{0}, sliceView(xs, 20, 3))
	assert.Equal(t, xs, sliceView(xs, 0, 100))
}
