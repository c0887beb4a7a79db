package transition

import (
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"
	"FinSqueeze/internal/services/consolidation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func flatBars(n int, price, volume float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := price + float64(i%3)*0.1
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c + 0.2, Low: c - 0.2, Close: c, Volume: volume}
	}
	return out
}

func appendCloses(bars []models.Bar, volume float64, closes ...float64) []models.Bar {
	for _, c := range closes {
		bars = append(bars, models.Bar{Time: t0.AddDate(0, 0, len(bars)), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: volume})
	}
	return bars
}

func TestMineScenarioBullishBreakout(t *testing.T) {
	bars := appendCloses(flatBars(20, 100, 1000), 2500, 108, 112, 116, 120, 124)
	periods := consolidation.NewDetector().Detect(bars, 20)
	require.Len(t, periods, 1)
	require.Greater(t, periods[0].Strength, 85.0)

	patterns := NewMiner(nil, nil).Mine(bars, periods)
	require.Len(t, patterns, 1)
	p := patterns[0]

	assert.True(t, p.BreakoutOccurred)
	assert.Equal(t, models.BreakoutBullish, p.Direction)
	assert.Equal(t, 20, p.BreakoutIndex)
	assert.Equal(t, 1, p.BarsToBreakout)
	assert.True(t, p.Successful)
	assert.True(t, p.Resolved)
	assert.Greater(t, p.MaxMove, 20.0)
	// five bars before the breakout are still consolidation bars
	assert.InDelta(t, 1.0, p.VolumeRatio, 1e-9)
}

func TestMineBearishBreakout(t *testing.T) {
	bars := appendCloses(flatBars(20, 100, 1000), 1000, 100, 100.2, 97, 95, 93, 92, 91, 90, 90, 90, 90, 90)
	periods := []models.ConsolidationPeriod{{
		StartIndex: 0, EndIndex: 19, Duration: 20, AvgVolume: 1000,
		Range: models.PriceRange{High: 100.4, Low: 99.8},
	}}
	p := NewMiner(nil, nil).Mine(bars, periods)[0]

	require.True(t, p.BreakoutOccurred)
	assert.Equal(t, models.BreakoutBearish, p.Direction)
	assert.Equal(t, 22, p.BreakoutIndex)
	assert.Equal(t, 3, p.BarsToBreakout)
	assert.True(t, p.Successful)
}

func TestMineNoBreakoutExcludedFromStats(t *testing.T) {
	bars := flatBars(60, 100, 1000)
	periods := consolidation.NewDetector().Detect(bars, 20)
	require.NotEmpty(t, periods)

	patterns := NewMiner(nil, nil).Mine(bars, periods)
	for _, p := range patterns {
		assert.False(t, p.BreakoutOccurred)
		assert.Equal(t, models.BreakoutNone, p.Direction)
	}
	total, ok, rate := Stats(patterns)
	assert.Zero(t, total)
	assert.Zero(t, ok)
	assert.Zero(t, rate)
}

func TestMineFailedBreakoutCountsWhenResolved(t *testing.T) {
	follow := make([]float64, 0, 15)
	for i := 0; i < 15; i++ {
		follow = append(follow, 102.5)
	}
	bars := appendCloses(flatBars(20, 100, 1000), 1000, follow...)
	periods := consolidation.NewDetector().Detect(bars[:20], 20)

	patterns := NewMiner(nil, nil).Mine(bars, periods)
	require.Len(t, patterns, 1)
	p := patterns[0]
	require.True(t, p.BreakoutOccurred)
	assert.False(t, p.Successful)
	assert.True(t, p.Resolved)

	total, ok, rate := Stats(patterns)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, ok)
	assert.Equal(t, 0.0, rate)
}

func TestMineTruncatedFailedBreakoutStillCounts(t *testing.T) {
	bars := appendCloses(flatBars(20, 100, 1000), 1000, 102.5, 102.5, 102.5)
	periods := consolidation.NewDetector().Detect(bars[:20], 20)

	patterns := NewMiner(nil, nil).Mine(bars, periods)
	require.Len(t, patterns, 1)
	p := patterns[0]
	require.True(t, p.BreakoutOccurred)
	assert.Equal(t, 3, p.FollowBars)
	assert.False(t, p.Successful)
	assert.True(t, p.Resolved)

	total, ok, _ := Stats(patterns)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, ok)
}

func TestMineSuccessThresholdIsConfigurable(t *testing.T) {
	bars := appendCloses(flatBars(20, 100, 1000), 1000, 104, 105, 106, 106, 106, 106, 106, 106, 106, 106, 106)
	periods := consolidation.NewDetector().Detect(bars[:20], 20)

	loose := NewMiner(nil, nil).Mine(bars, periods)[0]
	strict := NewMiner(nil, nil, WithSuccessMovePct(10)).Mine(bars, periods)[0]
	assert.True(t, loose.Successful)
	assert.False(t, strict.Successful)
}

func TestMineDedupe(t *testing.T) {
	bars := appendCloses(flatBars(30, 100, 1000), 3000, 108, 112, 116)
	periods := consolidation.NewDetector().Detect(bars, 20)
	require.Len(t, periods, 11)

	all := NewMiner(nil, nil).Mine(bars, periods)
	assert.Len(t, all, 11)

	deduped := NewMiner(nil, nil, WithDedupe(true)).Mine(bars, periods)
	require.Len(t, deduped, 1)
	assert.Equal(t, 30, deduped[0].BreakoutIndex)
}

func TestSqueezeConditionsCaptured(t *testing.T) {
	bars := appendCloses(flatBars(40, 100, 1000), 1000, 108)
	periods := consolidation.NewDetector().Detect(bars[:40], 20)
	p := NewMiner(nil, nil).Mine(bars, periods[len(periods)-1:])[0]

	assert.Len(t, p.Squeeze.Colors, 7)
	assert.Len(t, p.Squeeze.Momentum, 7)
	assert.NotEmpty(t, p.Squeeze.Status)
	assert.Equal(t, PremiumExpansion, p.PremiumBehavior)
}
