package squeeze

import (
	"FinSqueeze/internal/domain/models"
)

const (
	highSqueezePct  = 60.0
	activeFiringPct = 30.0
	extremeYellow   = 3
)

// Consensus summarizes squeeze and momentum agreement across timeframes.
func Consensus(states []models.SqueezeState) models.SqueezeConsensus {
	var c models.SqueezeConsensus
	if len(states) == 0 {
		c.Dominant = "neutral"
		return c
	}
	for _, st := range states {
		if st.IsSqueezed {
			c.Squeezed++
		}
		switch st.Status {
		case models.SqueezeFiring:
			c.Firing++
		case models.SqueezeBuilding:
			c.Building++
		}
		switch st.Color {
		case models.ColorRed:
			c.RedCount++
		case models.ColorYellow:
			c.YellowCount++
		}
		if st.Momentum.Direction.IsBullish() {
			c.BullishCount++
		} else {
			c.BearishCount++
		}
	}
	n := float64(len(states))
	c.SqueezedPct = float64(c.Squeezed) / n * 100
	c.FiringPct = float64(c.Firing) / n * 100
	c.BuildingPct = float64(c.Building) / n * 100

	switch {
	case c.BullishCount > c.BearishCount:
		c.Dominant = "bullish"
	case c.BearishCount > c.BullishCount:
		c.Dominant = "bearish"
	default:
		c.Dominant = "neutral"
	}

	if c.SqueezedPct >= highSqueezePct {
		c.Reasoning = append(c.Reasoning, "high-probability squeeze setup developing")
	}
	if c.FiringPct >= activeFiringPct {
		c.Reasoning = append(c.Reasoning, "active squeeze momentum release")
	}
	if c.YellowCount >= extremeYellow {
		c.Reasoning = append(c.Reasoning, "extreme compression on multiple timeframes")
	}
	switch c.Dominant {
	case "bullish":
		c.Reasoning = append(c.Reasoning, "bullish momentum dominates")
	case "bearish":
		c.Reasoning = append(c.Reasoning, "bearish momentum dominates")
	default:
		c.Reasoning = append(c.Reasoning, "momentum split across timeframes")
	}
	return c
}

// DetectCascade flags longer timeframes losing momentum while shorter ones accelerate.
// The direction is "continuation" when both sides lean the same way, "reversal" otherwise.
func DetectCascade(states []models.SqueezeState) models.MomentumCascade {
	var longer, shorter []models.SqueezeState
	for _, st := range states {
		switch {
		case isLonger(st.Group):
			longer = append(longer, st)
		case isShorter(st.Group):
			shorter = append(shorter, st)
		}
	}
	if len(longer) == 0 || len(shorter) == 0 {
		return models.MomentumCascade{}
	}

	longBull := 0
	for _, st := range longer {
		if st.Momentum.Direction.IsAccelerating() {
			return models.MomentumCascade{}
		}
		if st.Momentum.Direction.IsBullish() {
			longBull++
		}
	}
	accel, shortBull := 0, 0
	for _, st := range shorter {
		if st.Momentum.Direction.IsAccelerating() {
			accel++
		}
		if st.Momentum.Direction.IsBullish() {
			shortBull++
		}
	}
	if accel*2 <= len(shorter) {
		return models.MomentumCascade{}
	}

	longIsBull := longBull*2 >= len(longer)
	shortIsBull := shortBull*2 >= len(shorter)
	if longIsBull == shortIsBull {
		return models.MomentumCascade{
			Detected:    true,
			Direction:   "continuation",
			Description: "shorter timeframes accelerating in the direction of decelerating higher timeframes",
		}
	}
	return models.MomentumCascade{
		Detected:    true,
		Direction:   "reversal",
		Description: "shorter timeframes accelerating against decelerating higher timeframes",
	}
}
