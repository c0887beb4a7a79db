package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// EngineLatency observes each engine phase (consolidations, squeeze, backtest, ...).
	EngineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsqueeze",
			Subsystem: "engine",
			Name:      "latency_seconds",
			Help:      "Latency of engine phases",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"},
	)

	EngineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsqueeze",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Engine phase failures by reason",
		},
		[]string{"phase", "reason"},
	)

	MemoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsqueeze",
			Subsystem: "memo",
			Name:      "lookups_total",
			Help:      "Analysis memo lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the engine collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(EngineLatency, EngineErrors, MemoLookups)
	})
}

// ObservePhase records latency since start and, on failure, an error with reason.
func ObservePhase(phase string, start time.Time, err error, reason func(error) string) {
	EngineLatency.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	if err != nil {
		r := "error"
		if reason != nil {
			r = reason(err)
		}
		EngineErrors.WithLabelValues(phase, r).Inc()
	}
}
