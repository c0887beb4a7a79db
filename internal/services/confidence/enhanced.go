package confidence

import (
	"fmt"

	"FinSqueeze/internal/domain/models"
	"FinSqueeze/internal/services/backtest"
	"FinSqueeze/internal/services/transition"
)

const (
	squeezeWeight = 0.25
	volumeWeight  = 0.30
	premiumWeight = 0.25
	levelWeight   = 0.20

	strongSub = 70.0
	weakSub   = 30.0
)

var premiumPrior = map[string]float64{
	transition.PremiumExpansion:   80,
	transition.PremiumNormal:      55,
	transition.PremiumCompression: 30,
}

type subScore struct {
	name   string
	weight float64
	value  float64 // 0..100
	ok     bool
	note   string
}

// ScoreEnhanced blends four 0-100 sub-scores, cross-checking volume and premium
// readings against the backtested corpora when one is supplied.
func (s *Scorer) ScoreEnhanced(in models.EnhancedInputs) models.ConfidenceAssessment {
	subs := []subScore{
		squeezeSub(in.Squeeze),
		volumeSub(in.VolumeRatio, in.Backtest),
		premiumSub(in.PremiumBehavior, in.Backtest),
		levelSub(in.Consolidation, in.Price),
	}

	out := models.ConfidenceAssessment{Components: make([]models.ConfidenceComponent, 0, len(subs))}
	total := 0.0
	for _, sub := range subs {
		maxPts := sub.weight * 100
		pts := 0.0
		if sub.ok {
			pts = clip(sub.value, 0, 100) * sub.weight
		}
		total += pts
		out.Components = append(out.Components, models.ConfidenceComponent{
			Name: sub.name, Points: pts, MaxPoints: maxPts, Available: sub.ok,
		})
		out.Insights = append(out.Insights, sub.insight()...)
	}
	out.Score = clip(total, 0, 100)
	out.Rating = Rating(out.Score)
	return out
}

func (s subScore) insight() []string {
	switch {
	case !s.ok:
		return []string{s.name + " unavailable"}
	case s.value >= strongSub:
		return []string{fmt.Sprintf("%s supportive (%.0f/100)%s", s.name, s.value, s.note)}
	case s.value <= weakSub:
		return []string{fmt.Sprintf("%s weak (%.0f/100)%s", s.name, s.value, s.note)}
	}
	return nil
}

func squeezeSub(sq *models.MultiTimeframeSqueezeAnalysis) subScore {
	s := subScore{name: "squeeze", weight: squeezeWeight}
	if sq == nil || len(sq.Timeframes) == 0 {
		return s
	}
	s.ok = true
	s.value = 0.6*sq.Consensus.SqueezedPct + 0.4*sq.Signature.Similarity
	if sq.Signature.Name != "" {
		s.note = ", closest signature " + sq.Signature.Name
	}
	return s
}

func volumeSub(ratio *float64, bt *models.BacktestResult) subScore {
	s := subScore{name: "volume", weight: volumeWeight}
	if ratio == nil {
		return s
	}
	s.ok = true
	s.value = clip((*ratio-1)*100, 0, 100)
	if bt == nil {
		return s
	}
	bucket := backtest.VolumeBucket(*ratio)
	if st, ok := bt.VolumeStats[bucket]; ok && st.Frequency > 0 {
		s.value = 0.5*s.value + 0.5*st.SuccessRate
		s.note = fmt.Sprintf(", %s-volume breakouts %.0f%% successful over %d", bucket, st.SuccessRate, st.Frequency)
	}
	return s
}

func premiumSub(behavior string, bt *models.BacktestResult) subScore {
	s := subScore{name: "premium", weight: premiumWeight}
	prior, ok := premiumPrior[behavior]
	if !ok {
		return s
	}
	s.ok = true
	s.value = prior
	if bt == nil {
		return s
	}
	if st, ok := bt.PremiumStats[behavior]; ok && st.Frequency > 0 {
		s.value = 0.5*prior + 0.5*st.SuccessRate
		s.note = fmt.Sprintf(", %s breakouts %.0f%% successful over %d", behavior, st.SuccessRate, st.Frequency)
	}
	return s
}

// levelSub rates the consolidation boundary. A price that already left the
// range by more than its own width no longer gets credit for the level.
func levelSub(p *models.ConsolidationPeriod, price float64) subScore {
	s := subScore{name: "level_strength", weight: levelWeight}
	if p == nil {
		return s
	}
	s.ok = true
	s.value = p.Strength
	if price <= 0 || p.Range.High <= p.Range.Low {
		return s
	}
	width := p.Range.High - p.Range.Low
	var dist float64
	switch {
	case price > p.Range.High:
		dist = (price - p.Range.High) / width
	case price < p.Range.Low:
		dist = (p.Range.Low - price) / width
	}
	s.value = p.Strength * clip(1-dist, 0, 1)
	return s
}
