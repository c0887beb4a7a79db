package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixAndDate(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok || got.Unix() != ts {
		t.Fatalf("unexpected unix %v %v", got, ok)
	}
	d, ok := ParseTime("2024-01-31")
	if !ok || d.Day() != 31 {
		t.Fatalf("unexpected date %v %v", d, ok)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseSpan(t *testing.T) {
	d, err := ParseSpan("400d")
	if err != nil || d != 400*24*time.Hour {
		t.Fatalf("unexpected %v %v", d, err)
	}
	if _, err := ParseSpan("soon"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseSpan("0s"); err == nil {
		t.Fatalf("expected error for zero span")
	}
}

func TestFormatSpanRoundTrip(t *testing.T) {
	if got := FormatSpan(36 * time.Hour); got != "36h0m0s" {
		t.Fatalf("got %q", got)
	}
	d, err := ParseSpan(FormatSpan(36 * time.Hour))
	if err != nil || d != 36*time.Hour {
		t.Fatalf("unexpected %v %v", d, err)
	}
}

func TestSpanToBars(t *testing.T) {
	cases := []struct {
		span, bar time.Duration
		want      int
	}{
		{30 * 24 * time.Hour, 24 * time.Hour, 30},
		{90 * time.Minute, time.Hour, 2},
		{0, time.Hour, 0},
	}
	for _, c := range cases {
		if got := SpanToBars(c.span, c.bar); got != c.want {
			t.Fatalf("SpanToBars(%v,%v)=%d want %d", c.span, c.bar, got, c.want)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  aapl "); got != "AAPL" {
		t.Fatalf("got %q", got)
	}
}
