package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordError("backtest")
	r.RecordError("backtest")
	r.RecordConfidence("AAPL", 72.5)
	r.RecordMessageSent("kafka", "AAPL")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("backtest")))
	assert.Equal(t, 72.5, testutil.ToFloat64(r.confidence.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "AAPL")))
}
