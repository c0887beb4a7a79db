package backtest

import (
	"math"
	"sort"
	"strings"

	"FinSqueeze/internal/domain/models"
)

// TimeframeBucket groups by the number of squeezed timeframes.
func TimeframeBucket(squeezed int) string {
	switch {
	case squeezed <= 0:
		return "0"
	case squeezed <= 2:
		return "1-2"
	case squeezed <= 4:
		return "3-4"
	default:
		return "5+"
	}
}

// VolumeBucket groups by pre-breakout volume ratio.
func VolumeBucket(ratio float64) string {
	switch {
	case ratio < 1.2:
		return "low"
	case ratio < 1.5:
		return "moderate"
	case ratio < 2:
		return "high"
	default:
		return "extreme"
	}
}

// Label grades a pattern by success rate and average return (both in percent).
func Label(successRate, avgReturn float64) models.PatternLabel {
	switch {
	case successRate >= 90 && avgReturn >= 20:
		return models.LabelLegendary
	case successRate >= 80 && avgReturn >= 15:
		return models.LabelElite
	case successRate >= 70 && avgReturn >= 10:
		return models.LabelExcellent
	case successRate >= 60 && avgReturn >= 7:
		return models.LabelGood
	case successRate >= 50:
		return models.LabelAverage
	default:
		return models.LabelPoor
	}
}

// ConfidenceScore discounts success rate for small samples.
func ConfidenceScore(successRate float64, frequency int) float64 {
	f := float64(frequency)
	score := successRate*(1-1/(f+1)) + math.Min(f, 10)*2
	return math.Min(100, math.Max(0, score))
}

// HolyGrailScore ranks combined patterns.
func HolyGrailScore(successRate, avgReturn float64, frequency int, confidence float64) float64 {
	return 0.4*successRate + 0.3*avgReturn + 2*float64(frequency) + 0.3*confidence
}

const (
	holyGrailMinSuccess = 80.0
	holyGrailMinReturn  = 15.0
	holyGrailMinFreq    = 5
)

// combinedTable builds the timeframe x volume x premium table and its Holy Grail shortlist.
func combinedTable(patterns []models.TransitionPattern) ([]models.CombinedPattern, []models.CombinedPattern) {
	t := newTally()
	for _, p := range patterns {
		key := strings.Join([]string{
			TimeframeBucket(len(p.Squeeze.SqueezedTimeframes)),
			VolumeBucket(p.VolumeRatio),
			p.PremiumBehavior,
		}, "|")
		t.add(key, p)
	}

	rows := make([]models.CombinedPattern, 0, len(t))
	var grail []models.CombinedPattern
	for _, ps := range t.sorted(1) {
		parts := strings.SplitN(ps.Key, "|", 3)
		conf := ConfidenceScore(ps.SuccessRate, ps.Frequency)
		row := models.CombinedPattern{
			PatternStats:    ps,
			TimeframeBucket: parts[0],
			VolumeBucket:    parts[1],
			PremiumBucket:   parts[2],
			Label:           Label(ps.SuccessRate, ps.AverageReturn),
			ConfidenceScore: conf,
			Score:           HolyGrailScore(ps.SuccessRate, ps.AverageReturn, ps.Frequency, conf),
		}
		rows = append(rows, row)
		if ps.SuccessRate >= holyGrailMinSuccess && ps.AverageReturn >= holyGrailMinReturn && ps.Frequency >= holyGrailMinFreq {
			grail = append(grail, row)
		}
	}
	sort.SliceStable(grail, func(i, j int) bool { return grail[i].Score > grail[j].Score })
	return rows, grail
}
