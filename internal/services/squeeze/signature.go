package squeeze

import (
	"fmt"
	"math"

	"FinSqueeze/internal/domain/models"
)

// Signature is a named reference arrangement of timeframe counts.
type Signature struct {
	Name        string
	Squeezed    int
	Firing      int
	Red         int
	SuccessRate float64
}

// Signatures are the reference patterns, strongest historical record first.
// Their counts and success rates are illustrative labels, not fitted to data.
var Signatures = []Signature{
	{Name: "Perfect Storm", Squeezed: 6, Firing: 1, Red: 2, SuccessRate: 87},
	{Name: "Coiled Spring", Squeezed: 7, Firing: 0, Red: 4, SuccessRate: 78},
	{Name: "Cascade Ignition", Squeezed: 3, Firing: 3, Red: 1, SuccessRate: 72},
	{Name: "Early Compression", Squeezed: 4, Firing: 0, Red: 3, SuccessRate: 64},
	{Name: "Exhaustion Fade", Squeezed: 1, Firing: 5, Red: 0, SuccessRate: 41},
}

// maxSignatureDistance is the largest L1 distance over three counts of seven timeframes.
const maxSignatureDistance = 21

// MatchSignature returns the closest reference pattern by L1 distance.
// Ties go to the earlier entry.
func MatchSignature(squeezed, firing, red int) models.SignatureMatch {
	best := -1
	bestDist := math.MaxInt
	for i, s := range Signatures {
		d := abs(s.Squeezed-squeezed) + abs(s.Firing-firing) + abs(s.Red-red)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	s := Signatures[best]
	sim := 100 - float64(bestDist)*100/maxSignatureDistance
	if sim < 0 {
		sim = 0
	}
	return models.SignatureMatch{
		Name:        s.Name,
		SuccessRate: s.SuccessRate,
		Label:       fmt.Sprintf("%.0f%% historical success", s.SuccessRate),
		Distance:    bestDist,
		Similarity:  sim,
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
