package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	applogger "FinSqueeze/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	topic string
	fails int
	calls int
	trace string
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(ctx context.Context, _ []byte) error {
	h.calls++
	h.trace = TraceID(ctx)
	if h.calls <= h.fails {
		return errors.New("not yet")
	}
	return nil
}

func newTestConsumer(t *testing.T, h MessageHandler) *Consumer {
	t.Helper()
	c, err := NewConsumer(applogger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	return c
}

func TestConsumerProcessRetries(t *testing.T) {
	h := &countingHandler{topic: "bars", fails: 2}
	c := newTestConsumer(t, h).WithHook(TraceHook)

	km := kafka.Message{Topic: "bars", Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}
	require.NoError(t, c.process(km))
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, "t-1", h.trace)
}

func TestConsumerProcessExhausted(t *testing.T) {
	h := &countingHandler{topic: "bars", fails: 100}
	c := newTestConsumer(t, h)

	err := c.process(kafka.Message{Topic: "bars"})
	require.Error(t, err)
	assert.Equal(t, 3, h.calls)

	assert.Error(t, c.process(kafka.Message{Topic: "other"}))
}

func TestConsumerHookRejects(t *testing.T) {
	h := &countingHandler{topic: "bars"}
	var seen error
	c := newTestConsumer(t, h).WithHook(HookFuncs{
		Before: func(ctx context.Context, _ kafka.Message) (context.Context, error) {
			return ctx, errors.New("bad schema")
		},
		After: func(_ context.Context, _ kafka.Message, err error) { seen = err },
	})

	require.Error(t, c.process(kafka.Message{Topic: "bars"}))
	assert.Equal(t, 0, h.calls)
	assert.EqualError(t, seen, "bad schema")
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, _ = encodeValue("raw")
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
	assert.Equal(t, kafka.Snappy, parseCompression("unknown"))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}
