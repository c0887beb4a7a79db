package kafka

import (
	"context"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const traceHeader = "trace_id"

type traceKey struct{}

// ConsumerHook observes message handling. A BeforeHandle error skips the handler
// and sends the message down the failure path (DLQ, commit).
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookFuncs adapts plain functions to ConsumerHook; nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

// TraceHook puts the message trace id (or a fresh one) into the context.
var TraceHook = HookFuncs{
	Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
		id := ExtractTraceID(km)
		if id == "" {
			id = uuid.NewString()
		}
		return context.WithValue(ctx, traceKey{}, id), nil
	},
}

// TraceID returns the trace id set by TraceHook.
func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

// ExtractTraceID reads the trace id header if present.
func ExtractTraceID(km kafka.Message) string {
	for _, h := range km.Headers {
		if h.Key == traceHeader {
			return string(h.Value)
		}
	}
	return ""
}
