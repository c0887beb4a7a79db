package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	svccache "FinSqueeze/internal/service/cache"
	pkgcache "FinSqueeze/pkg/cache"
	"FinSqueeze/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeBarStore struct {
	bars  []models.Bar
	err   error
	calls int32
}

func (f *fakeBarStore) GetBars(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Bar
	for _, b := range f.bars {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarStore) GetLatestNBars(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.bars) {
		return append([]models.Bar(nil), f.bars[len(f.bars)-n:]...), nil
	}
	return append([]models.Bar(nil), f.bars...), nil
}

func (f *fakeBarStore) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type fakeQuotes struct{ q models.Quote }

func (f fakeQuotes) LastQuote(context.Context, string) (models.Quote, error) { return f.q, nil }

type fakePublisher struct {
	mu   sync.Mutex
	sent []*models.AggregateAnalysis
}

func (f *fakePublisher) PublishAnalysis(_ context.Context, a *models.AggregateAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeReports struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeReports) Init(context.Context) error { return nil }

func (f *fakeReports) StoreBacktest(_ context.Context, id string, _ *models.BacktestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeReports) Health(context.Context) error { return nil }

func (f *fakeReports) Close() error { return nil }

type fakeMetrics struct {
	mu         sync.Mutex
	errors     []string
	confidence map[string]float64
	sent       map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{confidence: map[string]float64{}, sent: map[string]int{}}
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordLastPrice(string, float64) {}

func (m *fakeMetrics) RecordConfidence(symbol string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidence[symbol] = score
}

func (m *fakeMetrics) RecordMessageSent(backend, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend]++
}

type fakeJobs struct {
	mu       sync.Mutex
	types    []string
	payloads []interface{}
}

func (f *fakeJobs) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload)
	return "job-1", nil
}

// cycles builds n blocks of 25 tight bars, each followed by a 10-bar rally of 10% per bar.
func cycles(n int) []models.Bar {
	var bars []models.Bar
	level := 100.0
	add := func(c, spread, vol float64) {
		bars = append(bars, models.Bar{
			Time: t0.AddDate(0, 0, len(bars)), Symbol: "CYC",
			Open: c, High: c + spread, Low: c - spread, Close: c, Volume: vol,
		})
	}
	for k := 0; k < n; k++ {
		for i := 0; i < 25; i++ {
			add(level*(1+float64(i%3)*0.001), level*0.002, 1000)
		}
		c := level
		for i := 0; i < 10; i++ {
			c *= 1.1
			add(c, c*0.005, 3000)
		}
		level = c * 1.1
	}
	return bars
}

func flat(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 * (1 + float64(i%4)*0.001)
		bars[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c + 0.2, Low: c - 0.2, Close: c, Volume: 1000}
	}
	return bars
}

func newEngine(store domrepo.BarStore, memo bool) *EngineUseCase {
	var m *svccache.AnalysisMemo
	if memo {
		m = svccache.NewAnalysisMemo(pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0)), time.Minute)
	}
	return NewEngineUseCase(NewBarsUseCase(store), config.Default().Engine, m, nil, nil)
}

func TestWindowParamsResolve(t *testing.T) {
	p := WindowParams{Symbol: " aapl ", Span: "30d", Timeframe: "1d"}
	require.NoError(t, p.Resolve(300))
	assert.Equal(t, "AAPL", p.Symbol)
	assert.Equal(t, 30, p.Window)

	p = WindowParams{Symbol: "AAPL"}
	require.NoError(t, p.Resolve(300))
	assert.Equal(t, 300, p.Window)
	assert.Equal(t, domrepo.TF1d, p.Timeframe)

	p = WindowParams{Symbol: "AAPL", Span: "soon"}
	assert.Error(t, p.Resolve(300))

	p = WindowParams{}
	assert.Error(t, p.Resolve(300))
}

func TestLoadEmptySeries(t *testing.T) {
	uc := NewBarsUseCase(&fakeBarStore{})
	_, err := uc.Load(context.Background(), WindowParams{Symbol: "NONE", Window: 50, Timeframe: domrepo.TF1d})
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
}

func TestDataUnavailablePropagates(t *testing.T) {
	store := &fakeBarStore{err: &models.DataUnavailableError{Symbol: "X", Err: errors.New("upstream down")}}
	_, err := newEngine(store, false).Squeeze(context.Background(), WindowParams{Symbol: "X"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.Equal(t, "data_unavailable", ErrorReason(err))
}

func TestConsolidationsMostRecentDefault(t *testing.T) {
	bars := cycles(4)
	uc := newEngine(&fakeBarStore{bars: bars}, false)

	res, err := uc.Consolidations(context.Background(), ConsolidationParams{
		WindowParams: WindowParams{Symbol: "cyc", Window: len(bars)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Periods)
	require.NotNil(t, res.MostRecent)
	assert.Equal(t, "CYC", res.Symbol)
	assert.Equal(t, 20, res.MinDuration)
	assert.Equal(t, len(res.Periods), res.Count)
	assert.Equal(t, res.Periods[len(res.Periods)-1].EndIndex, res.MostRecent.EndIndex)
	for _, p := range res.Periods {
		assert.LessOrEqual(t, p.Range.Low, p.Range.High)
	}

	ranked, err := uc.Consolidations(context.Background(), ConsolidationParams{
		WindowParams: WindowParams{Symbol: "CYC", Window: len(bars)},
		Ranked:       true,
	})
	require.NoError(t, err)
	for i := 1; i < len(ranked.Periods); i++ {
		assert.GreaterOrEqual(t, ranked.Periods[i-1].Strength, ranked.Periods[i].Strength)
	}
	assert.Equal(t, res.MostRecent.EndIndex, ranked.MostRecent.EndIndex)
}

func TestConsolidationsShortWindow(t *testing.T) {
	uc := newEngine(&fakeBarStore{bars: flat(10)}, false)
	_, err := uc.Consolidations(context.Background(), ConsolidationParams{
		WindowParams: WindowParams{Symbol: "SHORT", Window: 30},
		MinDuration:  20,
	})
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
}

func TestBacktestMemoizedUntilInvalidated(t *testing.T) {
	store := &fakeBarStore{bars: cycles(4)}
	uc := newEngine(store, true)
	ctx := context.Background()

	first, err := uc.Backtest(ctx, BacktestParams{Symbol: "CYC", Years: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, first.TotalPatterns)
	assert.Equal(t, 1, store.Calls())

	second, err := uc.Backtest(ctx, BacktestParams{Symbol: "cyc", Years: 1})
	require.NoError(t, err)
	assert.Equal(t, first.TotalPatterns, second.TotalPatterns)
	assert.Equal(t, 1, store.Calls())

	n, err := uc.InvalidateMemo(ctx, "CYC")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = uc.Backtest(ctx, BacktestParams{Symbol: "CYC", Years: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls())
}

func TestBacktestFlatHistory(t *testing.T) {
	uc := newEngine(&fakeBarStore{bars: flat(120)}, true)
	_, err := uc.Backtest(context.Background(), BacktestParams{Symbol: "FLAT"})
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
	assert.Equal(t, "insufficient_history", ErrorReason(err))
}

func TestConfidenceDegradesWithoutBacktest(t *testing.T) {
	uc := newEngine(&fakeBarStore{bars: flat(120)}, false)
	res, err := uc.Confidence(context.Background(), WindowParams{Symbol: "FLAT", Window: 120})
	require.NoError(t, err)

	assert.Contains(t, res.Missing, "backtest")
	assert.GreaterOrEqual(t, res.Base.Score, 0.0)
	assert.LessOrEqual(t, res.Base.Score, 95.0)
	assert.GreaterOrEqual(t, res.Enhanced.Score, 0.0)
	assert.LessOrEqual(t, res.Enhanced.Score, 100.0)

	total := 0.0
	for _, c := range res.Base.Components {
		total += c.MaxPoints
		assert.LessOrEqual(t, c.Points, c.MaxPoints, c.Name)
	}
	assert.Equal(t, 100.0, total)
}

func TestCurrentVolumeRatio(t *testing.T) {
	bars := flat(30)
	for i := 25; i < 30; i++ {
		bars[i].Volume = 2000
	}
	r, ok := CurrentVolumeRatio(bars, &models.ConsolidationPeriod{AvgVolume: 1000})
	require.True(t, ok)
	assert.InDelta(t, 2.0, r, 1e-9)

	r, ok = CurrentVolumeRatio(bars, nil)
	require.True(t, ok)
	assert.InDelta(t, 2.0, r, 1e-9)

	_, ok = CurrentVolumeRatio(bars[:3], nil)
	assert.False(t, ok)
}

func TestAggregateAnalyze(t *testing.T) {
	bars := cycles(4)
	pub := &fakePublisher{}
	reports := &fakeReports{}
	metrics := newFakeMetrics()
	uc := NewAggregateUseCase(newEngine(&fakeBarStore{bars: bars}, false), nil,
		WithQuoteSource(fakeQuotes{q: models.Quote{Symbol: "CYC", Price: 321.5, Timestamp: t0}}),
		WithPublisher(pub),
		WithReportStorage(reports),
		WithMetrics(metrics),
	)

	res, err := uc.Analyze(context.Background(), WindowParams{Symbol: "cyc", Window: len(bars)})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "CYC", res.Symbol)
	assert.Nil(t, res.Errors)
	assert.NotEmpty(t, res.Consolidations)
	require.NotNil(t, res.Squeeze)
	assert.Len(t, res.Squeeze.Timeframes, 7)
	require.NotNil(t, res.Backtest)
	assert.Equal(t, 4, res.Backtest.TotalPatterns)
	require.NotNil(t, res.Indicators)
	require.NotNil(t, res.Quote)
	assert.Equal(t, 321.5, res.Quote.Price)
	require.NotNil(t, res.Confidence)
	require.NotNil(t, res.Enhanced)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, res.ID, pub.sent[0].ID)
	assert.Equal(t, []string{res.ID}, reports.ids)
	assert.Equal(t, res.Confidence.Score, metrics.confidence["CYC"])
	assert.Equal(t, 1, metrics.sent["kafka"])
	assert.Equal(t, 1, metrics.sent["clickhouse"])
}

func TestAggregatePartialFailures(t *testing.T) {
	uc := NewAggregateUseCase(newEngine(&fakeBarStore{bars: flat(120)}, false), nil)

	res, err := uc.Analyze(context.Background(), WindowParams{Symbol: "FLAT", Window: 120})
	require.NoError(t, err)
	assert.Contains(t, res.Errors, "backtest")
	assert.Contains(t, res.Errors, "quote")
	assert.Nil(t, res.Backtest)
	assert.Nil(t, res.Quote)
	assert.NotNil(t, res.Squeeze)
	assert.NotNil(t, res.Confidence)
}

func TestBarEventsInvalidateAndEnqueue(t *testing.T) {
	store := &fakeBarStore{bars: cycles(4)}
	engine := newEngine(store, true)
	jobs := &fakeJobs{}
	metrics := newFakeMetrics()
	h := NewBarEventsHandler("bars", engine, jobs, metrics, nil)
	ctx := context.Background()

	_, err := engine.Backtest(ctx, BacktestParams{Symbol: "CYC", Years: 1})
	require.NoError(t, err)
	require.Equal(t, 1, store.Calls())

	msg, _ := json.Marshal(BarEvent{Symbol: "cyc", TF: "1d", T: t0.UnixMilli(), C: 101})
	require.NoError(t, h.Handle(ctx, msg))
	assert.Equal(t, "bars", h.Topic())

	require.Equal(t, []string{BacktestRefreshJob}, jobs.types)
	assert.Equal(t, BacktestJobPayload{Symbol: "CYC", Timeframe: "1d"}, jobs.payloads[0])
	assert.Equal(t, 1, metrics.sent["queue"])

	_, err = engine.Backtest(ctx, BacktestParams{Symbol: "CYC", Years: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls())
}

func TestBarEventsRejectsGarbage(t *testing.T) {
	metrics := newFakeMetrics()
	h := NewBarEventsHandler("bars", newEngine(&fakeBarStore{}, true), nil, metrics, nil)
	assert.Error(t, h.Handle(context.Background(), []byte("{")))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":"  "}`)))
	assert.Equal(t, []string{"bar_event_unmarshal", "bar_event_symbol"}, metrics.errors)
}

func TestBacktestJob(t *testing.T) {
	reports := &fakeReports{}
	job := NewBacktestJob(newEngine(&fakeBarStore{bars: cycles(4)}, true), reports, nil)
	assert.Equal(t, BacktestRefreshJob, job.Type())

	require.NoError(t, job.Handle(context.Background(), json.RawMessage(`{"symbol":"CYC","years":1}`)))
	assert.Len(t, reports.ids, 1)

	flatJob := NewBacktestJob(newEngine(&fakeBarStore{bars: flat(120)}, true), reports, nil)
	require.NoError(t, flatJob.Handle(context.Background(), json.RawMessage(`{"symbol":"FLAT"}`)))
	assert.Len(t, reports.ids, 1)

	assert.Error(t, job.Handle(context.Background(), nil))
}
