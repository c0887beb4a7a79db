package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyQueue struct {
	mu    sync.Mutex
	fail  bool
	jobs  []string
	ready chan struct{}
}

func (q *flakyQueue) Enqueue(_ context.Context, msgType string, _ interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return "", errors.New("queue down")
	}
	q.jobs = append(q.jobs, msgType)
	if q.ready != nil {
		close(q.ready)
		q.ready = nil
	}
	return "id", nil
}

func (q *flakyQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type payload struct{ Symbol string }

func TestRefreshGateThrottlesIdenticalJobs(t *testing.T) {
	q := &flakyQueue{}
	g := NewRefreshGate(q, nil, WithInterval(time.Minute))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	id, err := g.Enqueue(context.Background(), "refresh", payload{"ABC"})
	require.NoError(t, err)
	assert.Equal(t, "id", id)

	id, err = g.Enqueue(context.Background(), "refresh", payload{"ABC"})
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = g.Enqueue(context.Background(), "refresh", payload{"XYZ"})
	require.NoError(t, err)
	assert.Equal(t, 2, q.count())

	now = now.Add(2 * time.Minute)
	_, err = g.Enqueue(context.Background(), "refresh", payload{"ABC"})
	require.NoError(t, err)
	assert.Equal(t, 3, q.count())
}

func TestRefreshGateRetriesRejectedJobs(t *testing.T) {
	q := &flakyQueue{fail: true, ready: make(chan struct{})}
	g := NewRefreshGate(q, nil, WithInterval(0))

	_, err := g.Enqueue(context.Background(), "refresh", payload{"ABC"})
	require.Error(t, err)

	q.mu.Lock()
	q.fail = false
	ready := q.ready
	q.mu.Unlock()

	require.NoError(t, g.Start())
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered job was not retried")
	}
	require.NoError(t, g.Stop(context.Background()))
	assert.Equal(t, 1, q.count())
}
