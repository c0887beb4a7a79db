package util

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// ParseTime tries RFC3339, RFC3339Nano, date-only and unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseSpan accepts day/week units on top of time.ParseDuration ("400d", "2w3d", "90m").
func ParseSpan(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse span %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("span %q must be positive", s)
	}
	return d, nil
}

// SpanToBars converts a wall-clock span to a bar count at the given bar length.
// Partial bars round up.
func SpanToBars(span, bar time.Duration) int {
	if span <= 0 || bar <= 0 {
		return 0
	}
	n := int(span / bar)
	if span%bar != 0 {
		n++
	}
	return n
}

// FormatSpan renders d for logs and CLI output in a form ParseSpan accepts.
func FormatSpan(d time.Duration) string { return d.String() }
