package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrDataUnavailable     = errors.New("data unavailable")
)

// InsufficientHistoryError is returned when an operation has no sane fallback for short input.
type InsufficientHistoryError struct {
	Symbol   string
	Window   int
	Required int
	Reason   string
}

func (e *InsufficientHistoryError) Error() string {
	msg := fmt.Sprintf("insufficient history for %s: window=%d required=%d", e.Symbol, e.Window, e.Required)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// DataUnavailableError wraps an upstream fetch failure. It is never retried by the engine.
type DataUnavailableError struct {
	Symbol string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable for %s", e.Symbol)
	}
	return fmt.Sprintf("data unavailable for %s: %v", e.Symbol, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }
