package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinSqueeze/pkg/config"
	applogger "FinSqueeze/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
	done    chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	close(r.done)
	return ctx.Err()
}

type fakeQueue struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (q *fakeQueue) Enqueue(context.Context, string, interface{}) (string, error) { return "id", nil }

func (q *fakeQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = true
	return nil
}

func (q *fakeQueue) Stop(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	return nil
}

func TestAppLifecycle(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), done: make(chan struct{})}
	q := &fakeQueue{}
	var order []string

	app := New(config.Default(), applogger.Nop(), nil,
		WithRunner("quotes", runner),
		WithJobs(q),
		WithConsumer(nil),
		WithCloser("first", func() error { order = append(order, "first"); return nil }),
		WithCloser("second", func() error { order = append(order, "second"); return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx))

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("runner not started")
	}
	assert.True(t, q.started)

	cancel()
	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("runner ignored cancellation")
	}

	require.NoError(t, app.Shutdown(context.Background()))
	assert.True(t, q.stopped)
	assert.Equal(t, []string{"second", "first"}, order)
}
