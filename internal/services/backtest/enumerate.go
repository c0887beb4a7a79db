package backtest

import (
	"strings"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
)

// candidateCombos are the only 3+ timeframe combinations scored. Pairs are
// enumerated in full; larger combinations stay on this list so cost grows with
// pattern count, not with the power set of timeframes.
var candidateCombos = [][]string{
	{"1m", "5m", "15m"},
	{"15m", "1h", "4h"},
	{"1h", "4h", "1d"},
	{"5m", "30m", "4h"},
	{"1m", "15m", "1h", "1d"},
}

const (
	minEnumeratedFreq = 2
	maxEnumerated     = 25
)

type keyFunc func(p models.TransitionPattern) map[string]string

func colorKeys(p models.TransitionPattern) map[string]string {
	out := make(map[string]string, len(p.Squeeze.Colors))
	for tf, c := range p.Squeeze.Colors {
		out[tf] = string(c)
	}
	return out
}

func momentumKeys(p models.TransitionPattern) map[string]string {
	out := make(map[string]string, len(p.Squeeze.Momentum))
	for tf, d := range p.Squeeze.Momentum {
		out[tf] = string(d)
	}
	return out
}

// orderedTimeframes returns the timeframes present in values, fastest first.
func orderedTimeframes(values map[string]string) []string {
	out := make([]string, 0, len(values))
	for _, tf := range domrepo.AllTimeframes {
		if _, ok := values[string(tf)]; ok {
			out = append(out, string(tf))
		}
	}
	return out
}

// PatternKeys lists every bounded key a pattern contributes to: each timeframe,
// each timeframe pair, and each candidate combination it fully covers.
func PatternKeys(values map[string]string) []string {
	tfs := orderedTimeframes(values)
	keys := make([]string, 0, len(tfs)+len(tfs)*(len(tfs)-1)/2+len(candidateCombos))
	part := func(tf string) string { return tf + ":" + values[tf] }

	for _, tf := range tfs {
		keys = append(keys, part(tf))
	}
	for i := 0; i < len(tfs); i++ {
		for j := i + 1; j < len(tfs); j++ {
			keys = append(keys, part(tfs[i])+"+"+part(tfs[j]))
		}
	}
	for _, combo := range candidateCombos {
		parts := make([]string, 0, len(combo))
		for _, tf := range combo {
			if _, ok := values[tf]; !ok {
				parts = nil
				break
			}
			parts = append(parts, part(tf))
		}
		if parts != nil {
			keys = append(keys, strings.Join(parts, "+"))
		}
	}
	return keys
}

func enumerate(patterns []models.TransitionPattern, keysOf keyFunc) []models.PatternStats {
	t := newTally()
	for _, p := range patterns {
		for _, k := range PatternKeys(keysOf(p)) {
			t.add(k, p)
		}
	}
	out := t.sorted(minEnumeratedFreq)
	if len(out) > maxEnumerated {
		out = out[:maxEnumerated]
	}
	return out
}
