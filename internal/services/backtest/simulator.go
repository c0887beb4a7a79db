package backtest

import (
	"context"
	"sort"

	"FinSqueeze/internal/domain/models"
	domsvc "FinSqueeze/internal/domain/service"
	"FinSqueeze/internal/services/consolidation"
	"FinSqueeze/internal/services/transition"
)

// Config bounds the replay window.
type Config struct {
	MinDuration int
	Years       int
	BarsPerYear int
}

func DefaultConfig() Config {
	return Config{MinDuration: 20, Years: 2, BarsPerYear: 252}
}

// Option configures Simulator.
type Option func(*Config)

func WithMinDuration(n int) Option {
	return func(c *Config) {
		if n > 1 {
			c.MinDuration = n
		}
	}
}

// WithWindow sets the lookback in years and the bar density used to size it.
func WithWindow(years, barsPerYear int) Option {
	return func(c *Config) {
		if years > 0 {
			c.Years = years
		}
		if barsPerYear > 0 {
			c.BarsPerYear = barsPerYear
		}
	}
}

// Simulator replays consolidation->breakout transitions over history.
type Simulator struct {
	cfg      Config
	detector domsvc.ConsolidationDetector
	miner    domsvc.TransitionMiner
}

var _ domsvc.BacktestSimulator = (*Simulator)(nil)

func NewSimulator(detector domsvc.ConsolidationDetector, miner domsvc.TransitionMiner, opts ...Option) *Simulator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if detector == nil {
		detector = consolidation.NewDetector()
	}
	if miner == nil {
		miner = transition.NewMiner(nil, nil, transition.WithDedupe(true))
	}
	return &Simulator{cfg: cfg, detector: detector, miner: miner}
}

// WindowBars is the number of bars the simulator replays.
func (s *Simulator) WindowBars() int { return s.cfg.Years * s.cfg.BarsPerYear }

// Run performs the historical backtest. It checks ctx only between phases; callers
// bound its runtime with a deadline. Zero consolidations or zero resolved breakouts
// yield *models.InsufficientHistoryError.
func (s *Simulator) Run(ctx context.Context, symbol string, bars []models.Bar) (*models.BacktestResult, error) {
	hist := bars
	if w := s.WindowBars(); w > 0 && len(hist) > w {
		hist = hist[len(hist)-w:]
	}

	periods := s.detector.Detect(hist, s.cfg.MinDuration)
	if len(periods) == 0 {
		return nil, &models.InsufficientHistoryError{
			Symbol: symbol, Window: len(hist), Required: s.cfg.MinDuration,
			Reason: "no consolidations in backtest window",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mined := s.miner.Mine(hist, periods)
	patterns := make([]models.TransitionPattern, 0, len(mined))
	for _, p := range mined {
		if p.BreakoutOccurred && p.Resolved {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return nil, &models.InsufficientHistoryError{
			Symbol: symbol, Window: len(hist), Required: s.cfg.MinDuration,
			Reason: "no resolved breakouts in backtest window",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := summarize(symbol, hist, patterns)
	res.Consolidations = len(periods)
	res.Combined, res.HolyGrail = combinedTable(patterns)
	res.ColorPatterns = enumerate(patterns, colorKeys)
	res.MomentumPatterns = enumerate(patterns, momentumKeys)
	return res, nil
}

func summarize(symbol string, hist []models.Bar, patterns []models.TransitionPattern) *models.BacktestResult {
	total, ok, rate := transition.Stats(patterns)
	res := &models.BacktestResult{
		Symbol:              symbol,
		Window:              len(hist),
		From:                hist[0].Time,
		To:                  hist[len(hist)-1].Time,
		TotalPatterns:       total,
		SuccessfulBreakouts: ok,
		SuccessRate:         rate,
		Patterns:            patterns,
	}

	sum := 0.0
	best, worst := 0, 0
	tf, vol, prem := newTally(), newTally(), newTally()
	for i, p := range patterns {
		sum += p.MaxMove
		if p.MaxMove > patterns[best].MaxMove {
			best = i
		}
		if p.MaxMove < patterns[worst].MaxMove {
			worst = i
		}
		tf.add(TimeframeBucket(len(p.Squeeze.SqueezedTimeframes)), p)
		vol.add(VolumeBucket(p.VolumeRatio), p)
		prem.add(p.PremiumBehavior, p)
	}
	if total > 0 {
		res.AverageReturn = sum / float64(total)
	}
	b, w := patterns[best], patterns[worst]
	res.Best, res.Worst = &b, &w
	res.TimeframeStats = tf.stats()
	res.VolumeStats = vol.stats()
	res.PremiumStats = prem.stats()
	return res
}

type acc struct {
	n, ok int
	sum   float64
}

type tally map[string]*acc

func newTally() tally { return tally{} }

func (t tally) add(key string, p models.TransitionPattern) {
	a := t[key]
	if a == nil {
		a = &acc{}
		t[key] = a
	}
	a.n++
	a.sum += p.MaxMove
	if p.Successful {
		a.ok++
	}
}

func (a *acc) stats(key string) models.PatternStats {
	ps := models.PatternStats{Key: key, Frequency: a.n, Successes: a.ok}
	if a.n > 0 {
		ps.SuccessRate = float64(a.ok) / float64(a.n) * 100
		ps.AverageReturn = a.sum / float64(a.n)
	}
	return ps
}

func (t tally) stats() map[string]models.PatternStats {
	out := make(map[string]models.PatternStats, len(t))
	for k, a := range t {
		out[k] = a.stats(k)
	}
	return out
}

// sorted returns stats ordered by success rate, then frequency, then key.
func (t tally) sorted(minFreq int) []models.PatternStats {
	out := make([]models.PatternStats, 0, len(t))
	for k, a := range t {
		if a.n >= minFreq {
			out = append(out, a.stats(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Key < out[j].Key
	})
	return out
}
