package squeeze

import (
	domrepo "FinSqueeze/internal/domain/repository"
)

const (
	GroupUltraShort = "ultra-short"
	GroupShort      = "short"
	GroupMedium     = "medium"
	GroupLong       = "long"
)

// TimeframeSource describes where one timeframe view gets its bars. Offset slices
// reuse the primary series shifted back by Offset bars and are approximations of
// the real resolution; Native sources are fetched from a BarStore when one is configured.
type TimeframeSource struct {
	Timeframe domrepo.Timeframe `yaml:"timeframe"`
	Group     string            `yaml:"group"`
	Offset    int               `yaml:"offset"`
	Length    int               `yaml:"length"`
	Native    bool              `yaml:"native"`
}

// DefaultSources are the seven offset-sliced views over one daily series.
func DefaultSources() []TimeframeSource {
	return []TimeframeSource{
		{Timeframe: domrepo.TF1m, Group: GroupUltraShort, Offset: 0, Length: 20},
		{Timeframe: domrepo.TF5m, Group: GroupUltraShort, Offset: 1, Length: 25},
		{Timeframe: domrepo.TF15m, Group: GroupUltraShort, Offset: 2, Length: 30},
		{Timeframe: domrepo.TF30m, Group: GroupShort, Offset: 3, Length: 40},
		{Timeframe: domrepo.TF1h, Group: GroupShort, Offset: 5, Length: 50},
		{Timeframe: domrepo.TF4h, Group: GroupMedium, Offset: 8, Length: 60},
		{Timeframe: domrepo.TF1d, Group: GroupLong, Offset: 0, Length: 100},
	}
}

func isLonger(group string) bool { return group == GroupMedium || group == GroupLong }

func isShorter(group string) bool { return group == GroupUltraShort || group == GroupShort }

// sliceView cuts the offset view out of bars. Views never come back empty for
// non-empty input: an offset past the start falls back to the earliest bars.
func sliceView[T any](bars []T, offset, length int) []T {
	if len(bars) == 0 {
		return bars
	}
	end := len(bars) - offset
	if end < 1 {
		end = 1
	}
	start := 0
	if length > 0 && end-length > 0 {
		start = end - length
	}
	return bars[start:end]
}
