package consolidation

import (
	"math"
	"sort"

	"FinSqueeze/internal/domain/models"
	domsvc "FinSqueeze/internal/domain/service"
	"FinSqueeze/internal/services/indicators"
)

const (
	DefaultMaxRangePct = 8.0
	// strength falls to zero at DefaultMaxRangePct
	strengthPerPct = 12.5
)

// Option configures Detector.
type Option func(*Detector)

// WithMaxRangePct overrides the percent-range ceiling for a consolidation window.
func WithMaxRangePct(pct float64) Option {
	return func(d *Detector) {
		if pct > 0 {
			d.maxRangePct = pct
		}
	}
}

// Detector finds fixed-length windows whose high/low range stays tight.
type Detector struct {
	maxRangePct float64
}

var _ domsvc.ConsolidationDetector = (*Detector)(nil)

func NewDetector(opts ...Option) *Detector {
	d := &Detector{maxRangePct: DefaultMaxRangePct}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect emits one period per qualifying window of length minDuration, ordered by
// end index. Overlapping windows are not merged.
func (d *Detector) Detect(bars []models.Bar, minDuration int) []models.ConsolidationPeriod {
	if minDuration <= 0 || len(bars) < minDuration {
		return nil
	}

	var out []models.ConsolidationPeriod
	for end := minDuration - 1; end < len(bars); end++ {
		start := end - minDuration + 1
		window := bars[start : end+1]

		high, low := window[0].High, window[0].Low
		for _, b := range window[1:] {
			high = math.Max(high, b.High)
			low = math.Min(low, b.Low)
		}
		pct := indicators.SafeDiv(high-low, low) * 100
		if pct < 0 || pct >= d.maxRangePct {
			continue
		}

		out = append(out, models.ConsolidationPeriod{
			Start:      window[0].Time,
			End:        window[len(window)-1].Time,
			StartIndex: start,
			EndIndex:   end,
			Duration:   minDuration,
			Range:      models.PriceRange{High: high, Low: low, PercentRange: pct},
			AvgVolume:  indicators.AverageVolume(window),
			Strength:   Strength(pct),
		})
	}
	return out
}

// Strength maps a percent range onto 0-100, tighter ranges scoring higher.
func Strength(percentRange float64) float64 {
	s := 100 - percentRange*strengthPerPct
	return math.Max(0, math.Min(100, s))
}

// MostRecent returns the latest period, preferring the strongest among those
// sharing the latest end index. ok is false for an empty list.
func MostRecent(periods []models.ConsolidationPeriod) (models.ConsolidationPeriod, bool) {
	if len(periods) == 0 {
		return models.ConsolidationPeriod{}, false
	}
	best := periods[len(periods)-1]
	for i := len(periods) - 2; i >= 0 && periods[i].EndIndex == best.EndIndex; i-- {
		if periods[i].Strength > best.Strength {
			best = periods[i]
		}
	}
	return best, true
}

// Ranked returns a copy sorted by strength, most recent first among equals.
func Ranked(periods []models.ConsolidationPeriod) []models.ConsolidationPeriod {
	out := make([]models.ConsolidationPeriod, len(periods))
	copy(out, periods)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].EndIndex > out[j].EndIndex
	})
	return out
}
