package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestWriterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(Symbol("AAPL"))
	l.Info("scan done", Int("periods", 3), Float64("strength", 91.5), Duration("took", 1500*time.Millisecond))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "AAPL", m["symbol"])
	assert.Equal(t, 3.0, m["periods"])
	assert.Equal(t, 91.5, m["strength"])
	assert.Equal(t, 1500.0, m["took"])
	assert.Equal(t, "scan done", m["message"])
}

func TestCollectorFoldsRepeats(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWriter(&bytes.Buffer{})
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", Symbol("AAPL"), Error(errors.New("timeout")))
	}
	l.Error("fetch failed", Symbol("MSFT"), Error(errors.New("timeout")))
	l.Warn("not collected")
	assert.Equal(t, 2, l.collector.Len())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	counts := map[interface{}]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["symbol"]] = e.Count
	}
	assert.Equal(t, 3, counts["AAPL"])
	assert.Equal(t, 1, counts["MSFT"])
}

func TestCollectorThresholdFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x:1")
	c.AddLog("error", "b", nil, "x:2")
	assert.Equal(t, 0, c.Len())
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
}
