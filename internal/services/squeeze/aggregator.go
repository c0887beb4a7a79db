package squeeze

import (
	"context"
	"sync"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	domsvc "FinSqueeze/internal/domain/service"
	xlogger "FinSqueeze/pkg/logger"
)

// Option configures Aggregator.
type Option func(*Aggregator)

// WithSources replaces the default timeframe views.
func WithSources(sources []TimeframeSource) Option {
	return func(a *Aggregator) {
		if len(sources) > 0 {
			a.sources = sources
		}
	}
}

// WithBarStore enables Native sources to fetch their own series.
func WithBarStore(store domrepo.BarStore) Option {
	return func(a *Aggregator) { a.store = store }
}

// WithPrimary sets the resolution of the bars handed to Analyze. A view of the
// primary resolution with no offset is exact; every other offset view is approximate.
func WithPrimary(tf domrepo.Timeframe) Option {
	return func(a *Aggregator) {
		if domrepo.IsValidTimeframe(tf) {
			a.primary = tf
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *xlogger.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// Aggregator classifies every timeframe view and builds the consensus.
type Aggregator struct {
	classifier *Classifier
	sources    []TimeframeSource
	primary    domrepo.Timeframe
	store      domrepo.BarStore
	logger     *xlogger.Logger
}

var _ domsvc.MultiTimeframeAggregator = (*Aggregator)(nil)

func NewAggregator(classifier *Classifier, opts ...Option) *Aggregator {
	if classifier == nil {
		classifier = NewClassifier()
	}
	a := &Aggregator{classifier: classifier, sources: DefaultSources(), primary: domrepo.TF1d}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the configured timeframe views.
func (a *Aggregator) Sources() []TimeframeSource { return a.sources }

// Analyze classifies each view concurrently. Results keep the configured order.
func (a *Aggregator) Analyze(ctx context.Context, symbol string, bars []models.Bar) (*models.MultiTimeframeSqueezeAnalysis, error) {
	states := make([]models.SqueezeState, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src TimeframeSource) {
			defer wg.Done()
			view, approx := a.viewFor(ctx, symbol, bars, src)
			st := a.classifier.Classify(view, string(src.Timeframe))
			st.Group = src.Group
			st.Approximated = approx
			states[i] = st
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.build(symbol, states), nil
}

// Views classifies the offset views of bars synchronously. Used when mining
// history, where bars end at a past consolidation and no store lookups apply.
func (a *Aggregator) Views(bars []models.Bar) []models.SqueezeState {
	states := make([]models.SqueezeState, len(a.sources))
	for i, src := range a.sources {
		st := a.classifier.Classify(sliceView(bars, src.Offset, src.Length), string(src.Timeframe))
		st.Group = src.Group
		st.Approximated = a.approximate(src)
		states[i] = st
	}
	return states
}

func (a *Aggregator) viewFor(ctx context.Context, symbol string, bars []models.Bar, src TimeframeSource) ([]models.Bar, bool) {
	if src.Native && a.store != nil {
		native, err := a.store.GetLatestNBars(ctx, symbol, src.Length, src.Timeframe)
		if err == nil && len(native) > 0 {
			return native, false
		}
		if a.logger != nil {
			a.logger.Warn("squeeze: native timeframe unavailable, using offset view",
				xlogger.String("symbol", symbol),
				xlogger.String("tf", string(src.Timeframe)),
				xlogger.Any("error", err))
		}
	}
	return sliceView(bars, src.Offset, src.Length), a.approximate(src)
}

func (a *Aggregator) approximate(src TimeframeSource) bool {
	return src.Offset != 0 || src.Timeframe != a.primary
}

func (a *Aggregator) build(symbol string, states []models.SqueezeState) *models.MultiTimeframeSqueezeAnalysis {
	groups := map[string][]string{}
	approx := false
	for _, st := range states {
		groups[st.Group] = append(groups[st.Group], st.Timeframe)
		approx = approx || st.Approximated
	}
	consensus := Consensus(states)
	return &models.MultiTimeframeSqueezeAnalysis{
		Symbol:       symbol,
		Timestamp:    time.Now(),
		Timeframes:   states,
		Groups:       groups,
		Consensus:    consensus,
		Cascade:      DetectCascade(states),
		Signature:    MatchSignature(consensus.Squeezed, consensus.Firing, consensus.RedCount),
		Approximated: approx,
	}
}
