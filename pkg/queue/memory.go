package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"FinSqueeze/pkg/logger"

	"github.com/google/uuid"
)

var _ Publisher = (*MemoryQueue)(nil)

// MemoryQueue runs jobs in-process. It is used when Redis is disabled.
type MemoryQueue struct {
	logger *logger.Logger
	config *Config
	jobs   map[string]Job
	ch     chan Message
	wg     sync.WaitGroup
	once   sync.Once

	mu   sync.Mutex
	dead []Message
}

// NewMemoryQueue starts cfg.Workers goroutines consuming a buffered channel.
func NewMemoryQueue(lgr *logger.Logger, cfg *Config, jobs ...Job) *MemoryQueue {
	q := &MemoryQueue{
		logger: lgr,
		config: cfg.withDefaults(),
		jobs:   make(map[string]Job, len(jobs)),
		ch:     make(chan Message, 256),
	}
	for _, j := range jobs {
		q.jobs[j.Type()] = j
	}
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, EnqueuedAt: time.Now().UTC()}
	select {
	case q.ch <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// DeadLetters returns messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...)
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for msg := range q.ch {
		q.run(msg)
	}
}

// run retries inline; RetryDelay is honoured between attempts.
func (q *MemoryQueue) run(msg Message) {
	job, ok := q.jobs[msg.Type]
	if !ok {
		msg.LastError = "no job registered"
		q.bury(msg)
		return
	}
	for {
		err := job.Handle(context.Background(), msg.Payload)
		if err == nil {
			return
		}
		msg.Attempts++
		msg.LastError = err.Error()
		q.logger.Warn("job failed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.Error(err))
		if msg.Attempts > q.config.RetryLimit {
			q.bury(msg)
			return
		}
		time.Sleep(q.config.RetryDelay)
	}
}

func (q *MemoryQueue) bury(msg Message) {
	q.mu.Lock()
	q.dead = append(q.dead, msg)
	q.mu.Unlock()
}

// Stop closes the queue and waits for in-flight jobs.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.once.Do(func() { close(q.ch) })
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
