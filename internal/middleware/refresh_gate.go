package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	domrepo "FinSqueeze/internal/domain/repository"
	"FinSqueeze/pkg/queue"
)

// RefreshGate sits between bar events and the job queue. It drops a job when an
// identical one was accepted within the interval, and buffers jobs the queue
// rejected so a background loop can retry them.
type RefreshGate struct {
	next     queue.Publisher
	metrics  domrepo.Metrics
	interval time.Duration
	bufSize  int
	bufCh    chan pending
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	key      func(msgType string, payload interface{}) string
	now      func() time.Time
}

type pending struct {
	msgType string
	payload interface{}
}

type GateOption func(*RefreshGate)

// WithInterval sets the minimum spacing between identical jobs.
func WithInterval(d time.Duration) GateOption {
	return func(g *RefreshGate) {
		if d >= 0 {
			g.interval = d
		}
	}
}

// WithBufferSize sets how many rejected jobs are held for retry.
func WithBufferSize(n int) GateOption {
	return func(g *RefreshGate) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// WithKey overrides how jobs are considered identical.
func WithKey(fn func(msgType string, payload interface{}) string) GateOption {
	return func(g *RefreshGate) {
		if fn != nil {
			g.key = fn
		}
	}
}

func NewRefreshGate(next queue.Publisher, metrics domrepo.Metrics, opts ...GateOption) *RefreshGate {
	g := &RefreshGate{
		next:     next,
		metrics:  metrics,
		interval: time.Minute,
		bufSize:  256,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		key: func(msgType string, payload interface{}) string {
			return fmt.Sprintf("%s/%v", msgType, payload)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan pending, g.bufSize)
	return g
}

// Enqueue forwards the job unless an identical one passed recently. Throttled
// jobs return an empty id and no error.
func (g *RefreshGate) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	if !g.allow(g.key(msgType, payload)) {
		g.record("refresh_throttled")
		return "", nil
	}
	id, err := g.next.Enqueue(ctx, msgType, payload)
	if err != nil {
		select {
		case g.bufCh <- pending{msgType: msgType, payload: payload}:
			g.latency("refresh_buffer_depth", float64(len(g.bufCh)))
		default:
			g.record("refresh_buffer_full")
		}
		return "", fmt.Errorf("refresh gate: %w", err)
	}
	return id, nil
}

// Start starts the downstream queue, if it has a lifecycle, and the retry loop.
func (g *RefreshGate) Start() error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = true
	g.mu.Unlock()

	if s, ok := g.next.(interface{ Start() error }); ok {
		if err := s.Start(); err != nil {
			return err
		}
	}
	go g.flush()
	return nil
}

// Stop ends the retry loop, then stops the downstream queue.
func (g *RefreshGate) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	g.mu.Unlock()

	close(g.stopCh)
	select {
	case <-g.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s, ok := g.next.(interface{ Stop(context.Context) error }); ok {
		return s.Stop(ctx)
	}
	return nil
}

func (g *RefreshGate) flush() {
	defer close(g.done)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-g.stopCh:
			return
		case p := <-g.bufCh:
			if _, err := g.next.Enqueue(context.Background(), p.msgType, p.payload); err != nil {
				g.record("refresh_flush")
				if backoff < 2*time.Second {
					backoff *= 2
				}
				select {
				case g.bufCh <- p:
				default:
					g.record("refresh_buffer_drop")
				}
				select {
				case <-g.stopCh:
					return
				case <-time.After(backoff):
				}
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}
}

func (g *RefreshGate) allow(key string) bool {
	if g.interval <= 0 {
		return true
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastSeen[key]; ok && now.Sub(last) < g.interval {
		return false
	}
	g.lastSeen[key] = now
	return true
}

func (g *RefreshGate) record(kind string) {
	if g.metrics != nil {
		g.metrics.RecordError(kind)
	}
}

func (g *RefreshGate) latency(op string, v float64) {
	if g.metrics != nil {
		g.metrics.RecordLatency(op, v)
	}
}

var _ queue.Publisher = (*RefreshGate)(nil)
