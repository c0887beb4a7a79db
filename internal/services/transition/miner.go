package transition

import (
	"math"

	"FinSqueeze/internal/domain/models"
	domsvc "FinSqueeze/internal/domain/service"
	"FinSqueeze/internal/services/indicators"
	"FinSqueeze/internal/services/squeeze"
)

const (
	PremiumExpansion   = "expansion"
	PremiumNormal      = "normal"
	PremiumCompression = "compression"
)

// Config holds breakout thresholds. Percentages are whole numbers (2 = 2%).
type Config struct {
	BreakoutPct    float64
	SuccessMovePct float64
	LookAhead      int
	MinFollow      int
	MaxFollow      int
	VolumeLookback int
	Dedupe         bool
	Timeframe      string
}

func DefaultConfig() Config {
	return Config{
		BreakoutPct:    2,
		SuccessMovePct: 5,
		LookAhead:      20,
		MinFollow:      10,
		MaxFollow:      20,
		VolumeLookback: 5,
		Timeframe:      "1d",
	}
}

// Option configures Miner.
type Option func(*Config)

func WithBreakoutPct(pct float64) Option {
	return func(c *Config) {
		if pct > 0 {
			c.BreakoutPct = pct
		}
	}
}

func WithSuccessMovePct(pct float64) Option {
	return func(c *Config) {
		if pct > 0 {
			c.SuccessMovePct = pct
		}
	}
}

// WithWindows sets the breakout look-ahead and the follow-through range in bars.
func WithWindows(lookAhead, minFollow, maxFollow int) Option {
	return func(c *Config) {
		if lookAhead > 0 {
			c.LookAhead = lookAhead
		}
		if minFollow > 0 {
			c.MinFollow = minFollow
		}
		if maxFollow >= c.MinFollow {
			c.MaxFollow = maxFollow
		}
	}
}

// WithDedupe skips periods that end at or before an already mined breakout.
func WithDedupe(on bool) Option {
	return func(c *Config) { c.Dedupe = on }
}

func WithTimeframe(tf string) Option {
	return func(c *Config) {
		if tf != "" {
			c.Timeframe = tf
		}
	}
}

// Miner links consolidations to the breakout that followed them.
type Miner struct {
	cfg        Config
	classifier *squeeze.Classifier
	agg        *squeeze.Aggregator
}

var _ domsvc.TransitionMiner = (*Miner)(nil)

func NewMiner(classifier *squeeze.Classifier, agg *squeeze.Aggregator, opts ...Option) *Miner {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if classifier == nil {
		classifier = squeeze.NewClassifier()
	}
	if agg == nil {
		agg = squeeze.NewAggregator(classifier)
	}
	return &Miner{cfg: cfg, classifier: classifier, agg: agg}
}

// Config returns the effective thresholds.
func (m *Miner) Config() Config { return m.cfg }

// Mine returns one pattern per mined period, in period order. Periods without a
// breakout inside the look-ahead are returned with BreakoutOccurred=false.
func (m *Miner) Mine(bars []models.Bar, periods []models.ConsolidationPeriod) []models.TransitionPattern {
	out := make([]models.TransitionPattern, 0, len(periods))
	consumed := -1
	for _, p := range periods {
		if p.EndIndex >= len(bars) || p.StartIndex < 0 {
			continue
		}
		if m.cfg.Dedupe && p.EndIndex < consumed {
			continue
		}
		tp := m.mineOne(bars, p)
		if tp.BreakoutOccurred {
			consumed = tp.BreakoutIndex
		}
		out = append(out, tp)
	}
	return out
}

func (m *Miner) mineOne(bars []models.Bar, p models.ConsolidationPeriod) models.TransitionPattern {
	tp := models.TransitionPattern{
		Consolidation: p,
		Direction:     models.BreakoutNone,
		BreakoutIndex: -1,
		Squeeze:       m.conditionsAt(bars[:p.EndIndex+1]),
	}

	up := p.Range.High * (1 + m.cfg.BreakoutPct/100)
	down := p.Range.Low * (1 - m.cfg.BreakoutPct/100)
	last := p.EndIndex + m.cfg.LookAhead
	if last > len(bars)-1 {
		last = len(bars) - 1
	}
	for j := p.EndIndex + 1; j <= last; j++ {
		if bars[j].High > up {
			tp.Direction = models.BreakoutBullish
		} else if bars[j].Low < down {
			tp.Direction = models.BreakoutBearish
		} else {
			continue
		}
		tp.BreakoutOccurred = true
		tp.BreakoutIndex = j
		tp.BarsToBreakout = j - p.EndIndex
		break
	}
	if !tp.BreakoutOccurred {
		return tp
	}

	bi := tp.BreakoutIndex
	end := bi + m.cfg.MaxFollow
	if end > len(bars) {
		end = len(bars)
	}
	follow := bars[bi:end]
	tp.FollowBars = len(follow)
	tp.MaxMove = maxExcursion(follow, p.Range, tp.Direction)
	tp.Successful = tp.MaxMove >= m.cfg.SuccessMovePct
	// a breakout cut short by the end of the series still counts, win or lose
	tp.Resolved = tp.FollowBars >= 1

	from := bi - m.cfg.VolumeLookback
	if from < 0 {
		from = 0
	}
	tp.VolumeRatio = indicators.SafeDiv(indicators.AverageVolume(bars[from:bi]), p.AvgVolume)
	tp.PremiumBehavior = PremiumBehavior(bars[:bi+1])
	return tp
}

// maxExcursion is the largest favorable move beyond the broken boundary, in percent.
func maxExcursion(follow []models.Bar, r models.PriceRange, dir models.BreakoutDirection) float64 {
	best := 0.0
	for _, b := range follow {
		var move float64
		if dir == models.BreakoutBullish {
			move = indicators.SafeDiv(b.High-r.High, r.High) * 100
		} else {
			move = indicators.SafeDiv(r.Low-b.Low, r.Low) * 100
		}
		best = math.Max(best, move)
	}
	return best
}

// PremiumBehavior buckets the last bar's range against the prior ATR. It is a
// bar-derived stand-in for option premium expansion.
func PremiumBehavior(upToBreakout []models.Bar) string {
	n := len(upToBreakout)
	if n == 0 {
		return PremiumNormal
	}
	b := upToBreakout[n-1]
	atr := indicators.ATR(upToBreakout[:n-1], 14)
	ratio := indicators.SafeDiv(b.High-b.Low, atr)
	switch {
	case ratio > 1.5:
		return PremiumExpansion
	case ratio > 0.8:
		return PremiumNormal
	default:
		return PremiumCompression
	}
}

func (m *Miner) conditionsAt(history []models.Bar) models.SqueezeConditions {
	tail := history
	if len(tail) > 100 {
		tail = tail[len(tail)-100:]
	}
	st := m.classifier.Classify(tail, m.cfg.Timeframe)
	sc := models.SqueezeConditions{
		Status:            st.Status,
		Color:             st.Color,
		IsSqueezed:        st.IsSqueezed,
		CompressionLevel:  st.CompressionLevel,
		MomentumDirection: st.Momentum.Direction,
		Colors:            map[string]models.CompressionColor{},
		Momentum:          map[string]models.MomentumDirection{},
	}
	for _, v := range m.agg.Views(history) {
		if v.IsSqueezed {
			sc.SqueezedTimeframes = append(sc.SqueezedTimeframes, v.Timeframe)
		}
		if v.Status == models.SqueezeFiring {
			sc.FiringTimeframes = append(sc.FiringTimeframes, v.Timeframe)
		}
		sc.Colors[v.Timeframe] = v.Color
		sc.Momentum[v.Timeframe] = v.Momentum.Direction
	}
	return sc
}

// Stats counts resolved breakouts only; patterns without a breakout, or without
// enough follow-through to judge, are excluded rather than counted as failures.
func Stats(patterns []models.TransitionPattern) (total, successful int, rate float64) {
	for _, p := range patterns {
		if !p.BreakoutOccurred || !p.Resolved {
			continue
		}
		total++
		if p.Successful {
			successful++
		}
	}
	if total > 0 {
		rate = float64(successful) / float64(total) * 100
	}
	return total, successful, rate
}
