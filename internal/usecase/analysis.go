package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	svccache "FinSqueeze/internal/service/cache"
	svcmetrics "FinSqueeze/internal/service/metrics"
	"FinSqueeze/internal/services/backtest"
	"FinSqueeze/internal/services/confidence"
	"FinSqueeze/internal/services/consolidation"
	"FinSqueeze/internal/services/indicators"
	"FinSqueeze/internal/services/squeeze"
	"FinSqueeze/internal/services/transition"
	"FinSqueeze/pkg/config"
	xlogger "FinSqueeze/pkg/logger"
)

// memo kinds
const (
	kindSqueeze  = "squeeze"
	kindBacktest = "backtest"
)

// volume ratio compares the last recentVolumeBars against the reference window
const recentVolumeBars = 5

// EngineUseCase runs the analysis engine over bar windows loaded from the store.
type EngineUseCase struct {
	bars       *BarsUseCase
	cfg        config.Engine
	memo       *svccache.AnalysisMemo
	detector   *consolidation.Detector
	classifier *squeeze.Classifier
	aggregator *squeeze.Aggregator
	scorer     *confidence.Scorer
	logger     *xlogger.Logger
}

func NewEngineUseCase(bars *BarsUseCase, cfg config.Engine, memo *svccache.AnalysisMemo, agg *squeeze.Aggregator, l *xlogger.Logger) *EngineUseCase {
	if l == nil {
		l = xlogger.Nop()
	}
	classifier := squeeze.NewClassifier()
	if agg == nil {
		agg = squeeze.NewAggregator(classifier)
	}
	return &EngineUseCase{
		bars:       bars,
		cfg:        cfg,
		memo:       memo,
		detector:   consolidation.NewDetector(consolidation.WithMaxRangePct(cfg.MaxRangePct)),
		classifier: classifier,
		aggregator: agg,
		scorer:     confidence.NewScorer(),
		logger:     l,
	}
}

// Resolve fills WindowParams defaults from the engine config.
func (uc *EngineUseCase) Resolve(p *WindowParams) error {
	return p.Resolve(uc.cfg.LookbackBars)
}

type ConsolidationParams struct {
	WindowParams
	MinDuration int
	Ranked      bool
}

type ConsolidationResult struct {
	Symbol      string                       `json:"symbol"`
	Timeframe   string                       `json:"timeframe"`
	Window      int                          `json:"window"`
	MinDuration int                          `json:"min_duration"`
	Count       int                          `json:"count"`
	MostRecent  *models.ConsolidationPeriod  `json:"most_recent,omitempty"`
	Periods     []models.ConsolidationPeriod `json:"periods"`
}

// Consolidations detects tight-range windows. Periods come back in end order
// unless Ranked asks for strength order; MostRecent is always the latest one.
func (uc *EngineUseCase) Consolidations(ctx context.Context, p ConsolidationParams) (res *ConsolidationResult, err error) {
	defer observe("consolidations", time.Now(), &err)
	if err = uc.Resolve(&p.WindowParams); err != nil {
		return nil, err
	}
	if p.MinDuration <= 0 {
		p.MinDuration = uc.cfg.MinConsolidationBars
	}
	bars, err := uc.bars.Load(ctx, p.WindowParams)
	if err != nil {
		return nil, err
	}
	if len(bars) < p.MinDuration {
		return nil, &models.InsufficientHistoryError{
			Symbol: p.Symbol, Window: len(bars), Required: p.MinDuration,
			Reason: "window shorter than minimum consolidation",
		}
	}
	return uc.consolidationsOf(p, bars), nil
}

func (uc *EngineUseCase) consolidationsOf(p ConsolidationParams, bars []models.Bar) *ConsolidationResult {
	periods := uc.detector.Detect(bars, p.MinDuration)
	res := &ConsolidationResult{
		Symbol:      p.Symbol,
		Timeframe:   string(p.Timeframe),
		Window:      len(bars),
		MinDuration: p.MinDuration,
		Count:       len(periods),
		Periods:     periods,
	}
	if last, ok := consolidation.MostRecent(periods); ok {
		res.MostRecent = &last
	}
	if p.Ranked {
		res.Periods = consolidation.Ranked(periods)
	}
	if res.Periods == nil {
		res.Periods = []models.ConsolidationPeriod{}
	}
	return res
}

// Squeeze classifies every timeframe view of the window.
func (uc *EngineUseCase) Squeeze(ctx context.Context, p WindowParams) (res *models.MultiTimeframeSqueezeAnalysis, err error) {
	defer observe("squeeze", time.Now(), &err)
	if err = uc.Resolve(&p); err != nil {
		return nil, err
	}
	bars, err := uc.bars.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	return uc.squeezeOf(ctx, p, bars)
}

func (uc *EngineUseCase) squeezeOf(ctx context.Context, p WindowParams, bars []models.Bar) (*models.MultiTimeframeSqueezeAnalysis, error) {
	return svccache.Remember(ctx, uc.memo, p.Symbol, p.Window, memoKind(kindSqueeze, p.Timeframe),
		func() (*models.MultiTimeframeSqueezeAnalysis, error) {
			return uc.aggregator.Analyze(ctx, p.Symbol, bars)
		})
}

type BacktestParams struct {
	Symbol    string
	Years     int
	Timeframe domrepo.Timeframe
}

// Backtest replays the instrument's own history. The window is Years worth of bars
// at the requested resolution.
func (uc *EngineUseCase) Backtest(ctx context.Context, p BacktestParams) (res *models.BacktestResult, err error) {
	defer observe("backtest", time.Now(), &err)
	wp, err := uc.backtestWindow(p)
	if err != nil {
		return nil, err
	}
	return svccache.Remember(ctx, uc.memo, wp.Symbol, wp.Window, memoKind(kindBacktest, wp.Timeframe),
		func() (*models.BacktestResult, error) {
			bars, err := uc.bars.Load(ctx, wp)
			if err != nil {
				return nil, err
			}
			return uc.simulator(p.Years, wp.Timeframe).Run(ctx, wp.Symbol, bars)
		})
}

func (uc *EngineUseCase) backtestWindow(p BacktestParams) (WindowParams, error) {
	if p.Years <= 0 {
		p.Years = uc.cfg.BacktestYears
	}
	wp := WindowParams{Symbol: p.Symbol, Timeframe: p.Timeframe}
	if err := wp.Resolve(1); err != nil {
		return wp, err
	}
	wp.Window = p.Years * uc.barsPerYear(wp.Timeframe)
	if wp.Window > maxWindowBars {
		wp.Window = maxWindowBars
	}
	return wp, nil
}

func (uc *EngineUseCase) barsPerYear(tf domrepo.Timeframe) int {
	if tf == domrepo.TF1d {
		return uc.cfg.BarsPerYear
	}
	return int(indicators.BarsPerYear(string(tf)))
}

func (uc *EngineUseCase) simulator(years int, tf domrepo.Timeframe) *backtest.Simulator {
	if years <= 0 {
		years = uc.cfg.BacktestYears
	}
	miner := transition.NewMiner(uc.classifier, uc.aggregator,
		transition.WithBreakoutPct(uc.cfg.BreakoutPct),
		transition.WithSuccessMovePct(uc.cfg.SuccessMovePct),
		transition.WithWindows(uc.cfg.LookAheadBars, uc.cfg.MinFollowBars, uc.cfg.MaxFollowBars),
		transition.WithDedupe(true),
		transition.WithTimeframe(string(tf)),
	)
	return backtest.NewSimulator(uc.detector, miner,
		backtest.WithMinDuration(uc.cfg.MinConsolidationBars),
		backtest.WithWindow(years, uc.barsPerYear(tf)),
	)
}

// Indicators summarizes the latest bars of the window.
func (uc *EngineUseCase) Indicators(ctx context.Context, p WindowParams) (res *models.IndicatorSnapshot, err error) {
	defer observe("indicators", time.Now(), &err)
	if err = uc.Resolve(&p); err != nil {
		return nil, err
	}
	bars, err := uc.bars.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	snap := indicators.Snapshot(bars, string(p.Timeframe))
	return &snap, nil
}

type ConfidenceResult struct {
	Symbol          string                      `json:"symbol"`
	Timeframe       string                      `json:"timeframe"`
	Window          int                         `json:"window"`
	Base            models.ConfidenceAssessment `json:"base"`
	Enhanced        models.ConfidenceAssessment `json:"enhanced"`
	VolumeRatio     *float64                    `json:"volume_ratio,omitempty"`
	PremiumBehavior string                      `json:"premium_behavior"`
	// Missing lists inputs that could not be computed; their components score 0.
	Missing map[string]string `json:"missing,omitempty"`
}

// Confidence fuses the current state with the instrument's backtest. A failing
// backtest degrades the score instead of failing the call.
func (uc *EngineUseCase) Confidence(ctx context.Context, p WindowParams) (res *ConfidenceResult, err error) {
	defer observe("confidence", time.Now(), &err)
	if err = uc.Resolve(&p); err != nil {
		return nil, err
	}
	bars, err := uc.bars.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	sq, err := uc.squeezeOf(ctx, p, bars)
	if err != nil {
		return nil, err
	}
	cons := uc.consolidationsOf(ConsolidationParams{WindowParams: p, MinDuration: uc.cfg.MinConsolidationBars}, bars)

	missing := map[string]string{}
	bt, err := uc.Backtest(ctx, BacktestParams{Symbol: p.Symbol, Timeframe: p.Timeframe})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		missing["backtest"] = err.Error()
		bt = nil
	}
	res = uc.score(p, bars, cons.MostRecent, sq, bt, 0)
	for k, v := range missing {
		res.Missing[k] = v
	}
	if len(res.Missing) == 0 {
		res.Missing = nil
	}
	return res, nil
}

// score runs both scorer variants. price overrides the last close when positive.
func (uc *EngineUseCase) score(p WindowParams, bars []models.Bar, cons *models.ConsolidationPeriod, sq *models.MultiTimeframeSqueezeAnalysis, bt *models.BacktestResult, price float64) *ConfidenceResult {
	res := &ConfidenceResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Window:    len(bars),
		Missing:   map[string]string{},
	}
	if cons == nil {
		res.Missing["consolidation"] = "no consolidation in window"
	}
	if sq == nil {
		res.Missing["squeeze"] = "no squeeze analysis"
	}
	if ratio, ok := CurrentVolumeRatio(bars, cons); ok {
		res.VolumeRatio = &ratio
	} else {
		res.Missing["volume"] = "not enough volume history"
	}
	res.PremiumBehavior = transition.PremiumBehavior(bars)
	if price <= 0 && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}

	res.Base = uc.scorer.Score(models.ConfidenceInputs{
		Consolidation: cons,
		Squeeze:       sq,
		VolumeRatio:   res.VolumeRatio,
		Backtest:      bt,
	})
	res.Enhanced = uc.scorer.ScoreEnhanced(models.EnhancedInputs{
		Squeeze:         sq,
		VolumeRatio:     res.VolumeRatio,
		PremiumBehavior: res.PremiumBehavior,
		Backtest:        bt,
		Consolidation:   cons,
		Price:           price,
	})
	return res
}

// CurrentVolumeRatio compares the mean volume of the last bars with the reference:
// the consolidation's average volume when one is given, otherwise the preceding bars.
func CurrentVolumeRatio(bars []models.Bar, cons *models.ConsolidationPeriod) (float64, bool) {
	if len(bars) < recentVolumeBars {
		return 0, false
	}
	recent := indicators.AverageVolume(bars[len(bars)-recentVolumeBars:])
	ref := 0.0
	if cons != nil {
		ref = cons.AvgVolume
	} else if len(bars) >= 4*recentVolumeBars {
		ref = indicators.AverageVolume(bars[len(bars)-4*recentVolumeBars : len(bars)-recentVolumeBars])
	}
	if ref <= 0 {
		return 0, false
	}
	return recent / ref, true
}

// InvalidateMemo drops every memoized result for symbol.
func (uc *EngineUseCase) InvalidateMemo(ctx context.Context, symbol string) (int, error) {
	if uc.memo == nil {
		return 0, nil
	}
	n, err := uc.memo.Invalidate(ctx, symbol)
	if err != nil {
		return n, err
	}
	uc.logger.Debug("memo invalidated", xlogger.Symbol(symbol), xlogger.Int("keys", n))
	return n, nil
}

func memoKind(kind string, tf domrepo.Timeframe) string {
	return fmt.Sprintf("%s:%s", kind, tf)
}

func observe(phase string, start time.Time, err *error) {
	svcmetrics.ObservePhase(phase, start, *err, ErrorReason)
}

// ErrorReason maps an engine error to a metric label.
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
