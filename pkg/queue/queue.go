package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues messages for asynchronous processing.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Config tunes the consumer side.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
	// PollInterval bounds each blocking pop and the retry sweep.
	PollInterval time.Duration
}

func (c *Config) withDefaults() *Config {
	out := Config{Workers: 1, RetryLimit: 2, RetryDelay: 10 * time.Second, PollInterval: time.Second}
	if c == nil {
		return &out
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.RetryLimit >= 0 {
		out.RetryLimit = c.RetryLimit
	}
	if c.RetryDelay > 0 {
		out.RetryDelay = c.RetryDelay
	}
	if c.PollInterval > 0 {
		out.PollInterval = c.PollInterval
	}
	return &out
}

// Message is the envelope stored in the queue.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
