package consolidation

import (
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatThenBreakout() []models.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var bars []models.Bar
	for i := 0; i < 20; i++ {
		c := 100 + float64(i%3)*0.1
		bars = append(bars, models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 0.2, Low: c - 0.2, Close: c, Volume: 1000})
	}
	// 21st bar clears the range high by well over 3%
	closes := []float64{108, 112, 116, 120, 124}
	for i, c := range closes {
		bars = append(bars, models.Bar{Time: start.AddDate(0, 0, 20+i), Open: c - 2, High: c + 1, Low: c - 3, Close: c, Volume: 2500})
	}
	return bars
}

func TestDetectScenarioFlatWindow(t *testing.T) {
	bars := flatThenBreakout()
	periods := NewDetector().Detect(bars, 20)

	require.Len(t, periods, 1)
	p := periods[0]
	assert.Equal(t, 0, p.StartIndex)
	assert.Equal(t, 19, p.EndIndex)
	assert.Equal(t, 20, p.Duration)
	assert.Less(t, p.Range.PercentRange, 1.0)
	assert.Greater(t, p.Strength, 85.0)
	assert.InDelta(t, 1000.0, p.AvgVolume, 1e-9)
}

func TestDetectRangeInvariant(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []models.Bar
	for i := 0; i < 120; i++ {
		c := 100 + 6*float64((i/15)%4) + float64(i%5)
		bars = append(bars, models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1.5, Low: c - 1.5, Close: c, Volume: 500})
	}
	periods := NewDetector().Detect(bars, 10)
	require.NotEmpty(t, periods)
	for _, p := range periods {
		assert.Less(t, p.Range.PercentRange, 8.0)
		assert.GreaterOrEqual(t, p.Strength, 0.0)
		assert.LessOrEqual(t, p.Strength, 100.0)
	}
	for i := 1; i < len(periods); i++ {
		assert.Greater(t, periods[i].EndIndex, periods[i-1].EndIndex)
	}
}

func TestDetectShortInput(t *testing.T) {
	bars := flatThenBreakout()[:5]
	assert.Empty(t, NewDetector().Detect(bars, 20))
	assert.Empty(t, NewDetector().Detect(bars, 0))
}

func TestDetectOverlapsAreKept(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []models.Bar
	for i := 0; i < 30; i++ {
		bars = append(bars, models.Bar{Time: start.AddDate(0, 0, i), Open: 50, High: 50.5, Low: 49.5, Close: 50, Volume: 10})
	}
	periods := NewDetector().Detect(bars, 20)
	assert.Len(t, periods, 11)

	last, ok := MostRecent(periods)
	require.True(t, ok)
	assert.Equal(t, 29, last.EndIndex)
}

func TestStrengthClamp(t *testing.T) {
	assert.Equal(t, 100.0, Strength(0))
	assert.Equal(t, 0.0, Strength(9))
	assert.InDelta(t, 50.0, Strength(4), 1e-9)
}

func TestRankedOrdersByStrength(t *testing.T) {
	periods := []models.ConsolidationPeriod{
		{EndIndex: 1, Strength: 60},
		{EndIndex: 2, Strength: 90},
		{EndIndex: 3, Strength: 60},
	}
	r := Ranked(periods)
	assert.Equal(t, 2, r[0].EndIndex)
	assert.Equal(t, 3, r[1].EndIndex)
	assert.Equal(t, 1, r[2].EndIndex)
	assert.Equal(t, 1, periods[0].EndIndex)
}

func TestWithMaxRangePct(t *testing.T) {
	bars := flatThenBreakout()
	assert.Empty(t, NewDetector(WithMaxRangePct(0.1)).Detect(bars, 20))
}
