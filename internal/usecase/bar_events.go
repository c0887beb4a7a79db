package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "FinSqueeze/internal/domain/repository"
	pkgkafka "FinSqueeze/pkg/kafka"
	xlogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/queue"
	"FinSqueeze/pkg/util"
)

// BarEventsHandler consumes bar-update events. New bars make memoized results stale,
// so every event invalidates the instrument's memo and queues a backtest refresh.
type BarEventsHandler struct {
	topic   string
	engine  *EngineUseCase
	jobs    queue.Publisher
	metrics domrepo.Metrics
	logger  *xlogger.Logger
}

func NewBarEventsHandler(topic string, engine *EngineUseCase, jobs queue.Publisher, metrics domrepo.Metrics, l *xlogger.Logger) *BarEventsHandler {
	if l == nil {
		l = xlogger.Nop()
	}
	return &BarEventsHandler{topic: topic, engine: engine, jobs: jobs, metrics: metrics, logger: l}
}

func (h *BarEventsHandler) Topic() string { return h.topic }

// BarEvent is the incoming message schema: {symbol, tf, t, o, h, l, c, v}.
type BarEvent struct {
	Symbol string  `json:"symbol"`
	TF     string  `json:"tf"`
	T      int64   `json:"t"`
	O      float64 `json:"o"`
	H      float64 `json:"h"`
	L      float64 `json:"l"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

func (h *BarEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev BarEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.recordError("bar_event_unmarshal")
		return fmt.Errorf("unmarshal bar event: %w", err)
	}
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	if ev.Symbol == "" {
		h.recordError("bar_event_symbol")
		return fmt.Errorf("bar event without symbol")
	}
	if ev.T > 1e11 { // ms
		ev.T = ev.T / 1000
	}
	if h.metrics != nil && ev.T > 0 {
		h.metrics.RecordLatency("bar_event_lag_seconds", time.Since(time.Unix(ev.T, 0)).Seconds())
		if ev.C > 0 {
			h.metrics.RecordLastPrice(ev.Symbol, ev.C)
		}
	}

	n, err := h.engine.InvalidateMemo(ctx, ev.Symbol)
	if err != nil {
		h.recordError("memo_invalidate")
		return err
	}

	if h.jobs != nil {
		id, err := h.jobs.Enqueue(ctx, BacktestRefreshJob, BacktestJobPayload{
			Symbol:    ev.Symbol,
			Timeframe: string(domrepo.NormalizeTimeframe(ev.TF)),
		})
		if err != nil {
			h.recordError("enqueue_backtest")
			return fmt.Errorf("enqueue backtest for %s: %w", ev.Symbol, err)
		}
		if h.metrics != nil && id != "" {
			h.metrics.RecordMessageSent("queue", ev.Symbol)
		}
		h.logger.Debug("bar event handled",
			xlogger.Symbol(ev.Symbol),
			xlogger.Int("invalidated", n),
			xlogger.String("job_id", id))
	}
	return nil
}

func (h *BarEventsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*BarEventsHandler)(nil)
