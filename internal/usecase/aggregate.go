package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	"FinSqueeze/internal/services/indicators"
	xlogger "FinSqueeze/pkg/logger"

	"github.com/google/uuid"
)

// AggregateUseCase runs every engine analysis for one instrument concurrently.
type AggregateUseCase struct {
	engine    *EngineUseCase
	quotes    domrepo.QuoteSource
	publisher domrepo.AnalysisPublisher
	reports   domrepo.ReportStorage
	metrics   domrepo.Metrics
	timeout   time.Duration
	logger    *xlogger.Logger
}

// AggregateOption configures AggregateUseCase.
type AggregateOption func(*AggregateUseCase)

func WithQuoteSource(q domrepo.QuoteSource) AggregateOption {
	return func(uc *AggregateUseCase) { uc.quotes = q }
}

func WithPublisher(p domrepo.AnalysisPublisher) AggregateOption {
	return func(uc *AggregateUseCase) { uc.publisher = p }
}

func WithReportStorage(r domrepo.ReportStorage) AggregateOption {
	return func(uc *AggregateUseCase) { uc.reports = r }
}

func WithMetrics(m domrepo.Metrics) AggregateOption {
	return func(uc *AggregateUseCase) { uc.metrics = m }
}

func WithTimeout(d time.Duration) AggregateOption {
	return func(uc *AggregateUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

func NewAggregateUseCase(engine *EngineUseCase, l *xlogger.Logger, opts ...AggregateOption) *AggregateUseCase {
	if l == nil {
		l = xlogger.Nop()
	}
	uc := &AggregateUseCase{engine: engine, timeout: 10 * time.Second, logger: l}
	if engine != nil && engine.cfg.Timeout > 0 {
		uc.timeout = engine.cfg.Timeout
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Analyze loads the window once and fans out consolidations, squeeze, backtest,
// indicators and quote lookups. Confidence is scored after the join from whatever
// succeeded; failures are reported per analysis in Errors.
func (uc *AggregateUseCase) Analyze(ctx context.Context, p WindowParams) (*models.AggregateAnalysis, error) {
	if err := uc.engine.Resolve(&p); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	bars, err := uc.engine.bars.Load(ctx, p)
	if err != nil {
		return nil, err
	}

	res := &models.AggregateAnalysis{
		ID:        uuid.NewString(),
		Symbol:    p.Symbol,
		Window:    len(bars),
		Timestamp: time.Now(),
		Errors:    map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 5)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v := uc.engine.consolidationsOf(ConsolidationParams{WindowParams: p, MinDuration: uc.engine.cfg.MinConsolidationBars}, bars)
		ch <- item{"consolidations", v, nil}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.engine.squeezeOf(ctx, p, bars)
		ch <- item{"squeeze", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.engine.Backtest(ctx, BacktestParams{Symbol: p.Symbol, Timeframe: p.Timeframe})
		ch <- item{"backtest", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v := indicators.Snapshot(bars, string(p.Timeframe))
		ch <- item{"indicators", v, nil}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if uc.quotes == nil {
			ch <- item{"quote", nil, errors.New("no quote source configured")}
			return
		}
		v, err := uc.quotes.LastQuote(ctx, p.Symbol)
		ch <- item{"quote", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	var cons *models.ConsolidationPeriod
	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "consolidations":
			v := it.val.(*ConsolidationResult)
			res.Consolidations = v.Periods
			cons = v.MostRecent
		case "squeeze":
			res.Squeeze = it.val.(*models.MultiTimeframeSqueezeAnalysis)
		case "backtest":
			res.Backtest = it.val.(*models.BacktestResult)
		case "indicators":
			v := it.val.(models.IndicatorSnapshot)
			res.Indicators = &v
		case "quote":
			v := it.val.(models.Quote)
			res.Quote = &v
		}
	}

	if err := ctx.Err(); err != nil && res.Squeeze == nil && res.Backtest == nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Symbol, err)
	}

	price := 0.0
	if res.Quote != nil {
		price = res.Quote.Price
	}
	scored := uc.engine.score(p, bars, cons, res.Squeeze, res.Backtest, price)
	res.Confidence = &scored.Base
	res.Enhanced = &scored.Enhanced

	uc.record(res)
	uc.persist(ctx, res)

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

func (uc *AggregateUseCase) record(res *models.AggregateAnalysis) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.RecordConfidence(res.Symbol, res.Confidence.Score)
	if res.Quote != nil {
		uc.metrics.RecordLastPrice(res.Symbol, res.Quote.Price)
	}
	for name := range res.Errors {
		uc.metrics.RecordError("aggregate_" + name)
	}
}

// persist publishes the analysis and audits the backtest. Sink failures are logged
// and never fail the request.
func (uc *AggregateUseCase) persist(ctx context.Context, res *models.AggregateAnalysis) {
	if uc.publisher != nil {
		if err := uc.publisher.PublishAnalysis(ctx, res); err != nil {
			uc.logger.Warn("publish analysis failed", xlogger.Symbol(res.Symbol), xlogger.Error(err))
			if uc.metrics != nil {
				uc.metrics.RecordError("publish_analysis")
			}
		} else if uc.metrics != nil {
			uc.metrics.RecordMessageSent("kafka", res.Symbol)
		}
	}
	if uc.reports != nil && res.Backtest != nil {
		if err := uc.reports.StoreBacktest(ctx, res.ID, res.Backtest); err != nil {
			uc.logger.Warn("store backtest report failed", xlogger.Symbol(res.Symbol), xlogger.Error(err))
			if uc.metrics != nil {
				uc.metrics.RecordError("store_report")
			}
		} else if uc.metrics != nil {
			uc.metrics.RecordMessageSent("clickhouse", res.Symbol)
		}
	}
}
