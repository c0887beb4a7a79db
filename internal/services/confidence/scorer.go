package confidence

import (
	"math"

	"FinSqueeze/internal/domain/models"
	domsvc "FinSqueeze/internal/domain/service"
	"FinSqueeze/internal/services/backtest"
)

const (
	MaxScore = 95.0

	similarityMax    = 25.0
	volumeMax        = 20.0
	squeezedMax      = 15.0
	historicalMax    = 10.0
	consolidationMax = 30.0
)

// Rating thresholds, highest first.
var ratings = []struct {
	min  float64
	name string
}{
	{80, "VERY HIGH"},
	{65, "HIGH"},
	{50, "MODERATE"},
	{35, "LOW"},
}

// Rating maps a score to its label.
func Rating(score float64) string {
	for _, r := range ratings {
		if score >= r.min {
			return r.name
		}
	}
	return "VERY LOW"
}

// Scorer fuses independently computed signals. Every component is evaluated on
// its own so a missing input only zeroes that component.
type Scorer struct{}

var _ domsvc.ConfidenceScorer = (*Scorer)(nil)

func NewScorer() *Scorer { return &Scorer{} }

// Score is the base assessment, clipped to [0, MaxScore].
func (s *Scorer) Score(in models.ConfidenceInputs) models.ConfidenceAssessment {
	comps := []models.ConfidenceComponent{
		similarityComponent(in.Squeeze),
		volumeComponent(in.VolumeRatio),
		squeezedComponent(in.Squeeze),
		historicalComponent(in.Squeeze, in.Backtest),
		consolidationComponent(in.Consolidation),
	}

	total := 0.0
	for _, c := range comps {
		total += c.Points
	}
	total = clip(total, 0, MaxScore)
	return models.ConfidenceAssessment{
		Score:      total,
		Rating:     Rating(total),
		Components: comps,
		Insights:   baseInsights(comps),
	}
}

func similarityComponent(sq *models.MultiTimeframeSqueezeAnalysis) models.ConfidenceComponent {
	c := models.ConfidenceComponent{Name: "pattern_similarity", MaxPoints: similarityMax}
	if sq == nil || sq.Signature.Name == "" {
		return c
	}
	c.Available = true
	c.Points = clip(sq.Signature.Similarity/100*similarityMax, 0, similarityMax)
	return c
}

// volume scales linearly from ratio 1 (no confirmation) to ratio 2 (full points).
func volumeComponent(ratio *float64) models.ConfidenceComponent {
	c := models.ConfidenceComponent{Name: "volume_confirmation", MaxPoints: volumeMax}
	if ratio == nil || math.IsNaN(*ratio) {
		return c
	}
	c.Available = true
	c.Points = clip((*ratio-1)*volumeMax, 0, volumeMax)
	return c
}

func squeezedComponent(sq *models.MultiTimeframeSqueezeAnalysis) models.ConfidenceComponent {
	c := models.ConfidenceComponent{Name: "squeezed_timeframes", MaxPoints: squeezedMax}
	if sq == nil || len(sq.Timeframes) == 0 {
		return c
	}
	c.Available = true
	c.Points = clip(sq.Consensus.SqueezedPct/100*squeezedMax, 0, squeezedMax)
	return c
}

// historicalComponent prefers the backtested success rate of the bucket matching
// the current squeezed count, then the overall backtest, then the signature's prior.
func historicalComponent(sq *models.MultiTimeframeSqueezeAnalysis, bt *models.BacktestResult) models.ConfidenceComponent {
	c := models.ConfidenceComponent{Name: "historical_success", MaxPoints: historicalMax}
	rate, ok := historicalRate(sq, bt)
	if !ok {
		return c
	}
	c.Available = true
	c.Points = clip(rate/100*historicalMax, 0, historicalMax)
	return c
}

func historicalRate(sq *models.MultiTimeframeSqueezeAnalysis, bt *models.BacktestResult) (float64, bool) {
	if bt != nil {
		if sq != nil {
			bucket := backtest.TimeframeBucket(sq.Consensus.Squeezed)
			if st, ok := bt.TimeframeStats[bucket]; ok && st.Frequency > 0 {
				return st.SuccessRate, true
			}
		}
		if bt.TotalPatterns > 0 {
			return bt.SuccessRate, true
		}
	}
	if sq != nil && sq.Signature.Name != "" {
		return sq.Signature.SuccessRate, true
	}
	return 0, false
}

func consolidationComponent(p *models.ConsolidationPeriod) models.ConfidenceComponent {
	c := models.ConfidenceComponent{Name: "consolidation_strength", MaxPoints: consolidationMax}
	if p == nil {
		return c
	}
	c.Available = true
	c.Points = clip(p.Strength/100*consolidationMax, 0, consolidationMax)
	return c
}

func baseInsights(comps []models.ConfidenceComponent) []string {
	var out []string
	for _, c := range comps {
		switch {
		case !c.Available:
			out = append(out, c.Name+" unavailable")
		case c.Points >= 0.8*c.MaxPoints:
			out = append(out, "strong "+c.Name)
		case c.Points <= 0.2*c.MaxPoints:
			out = append(out, "weak "+c.Name)
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
