// Package scoring maps an enriched cluster to a 0-100 integer score.
//
// Every function here is pure. The caller passes a ScoringConfig snapshot so
// a scan or rescore pass never mixes weights.
package scoring

import (
	"math"

	"github.com/okian/painpoint/internal/domain/model"
)

const (
	maxScore = 100

	// demandSaturation is the mention count at which volume saturates.
	demandSaturation = 100
	// diversitySaturation is the number of sources for full diversity credit.
	diversitySaturation = 3
	volumeShare         = 0.85

	// revenueSaturation is the monthly revenue at which the revenue score saturates.
	revenueSaturation = 10_000

	unknownCompetitionScore = 25
	noCompetitionScore      = 40
	overcrowdedPenalty      = 10
)

// Input holds the signals the scoring engine reads.
type Input struct {
	MentionCount    int
	SourceDiversity int
	RevenueAmount   float64 // model.Unknown when enrichment failed
	CompetitorCount int     // model.Unknown when enrichment failed
	Complexity      model.Complexity
}

// Breakdown is a scored input with its sub-scores.
type Breakdown struct {
	Demand      float64
	Revenue     float64
	Competition float64
	Complexity  float64
	Score       int
}

// InputFromOpportunity reads the persisted signals of o, applying overrides.
func InputFromOpportunity(o *model.Opportunity) Input {
	return Input{
		MentionCount:    o.MentionCount,
		SourceDiversity: len(o.SourceCounts),
		RevenueAmount:   o.RevenueAmount,
		CompetitorCount: o.CompetitorCount,
		Complexity:      o.EffectiveComplexity(),
	}
}

// Score returns the composite score.
func Score(in Input, cfg model.ScoringConfig) int {
	return Compute(in, cfg).Score
}

// Compute returns the composite score and its sub-scores.
func Compute(in Input, cfg model.ScoringConfig) Breakdown {
	b := Breakdown{
		Demand:      DemandScore(in.MentionCount, in.SourceDiversity),
		Revenue:     RevenueScore(in.RevenueAmount),
		Competition: CompetitionScore(in.CompetitorCount, cfg.Thresholds),
		Complexity:  ComplexityScore(in.Complexity),
	}
	w := cfg.EffectiveWeights()
	raw := w.Demand*b.Demand + w.Revenue*b.Revenue + w.Competition*b.Competition + w.Complexity*b.Complexity
	b.Score = clampInt(int(math.Round(raw)))
	return b
}

// DemandScore grows logarithmically with mentions and gives a small bonus for
// cross-source diversity. It never exceeds 100.
func DemandScore(mentions, sources int) float64 {
	if mentions <= 0 {
		return 0
	}
	volume := math.Min(maxScore, maxScore*math.Log1p(float64(mentions))/math.Log1p(demandSaturation))
	diversity := math.Min(1, float64(max(sources, 0))/diversitySaturation) * maxScore
	return clamp(volumeShare*volume + (1-volumeShare)*diversity)
}

// RevenueScore is 0 without evidence and grows logarithmically with monthly revenue.
func RevenueScore(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return clamp(maxScore * math.Log10(1+amount) / math.Log10(1+revenueSaturation))
}

// CompetitionScore peaks inside [MinCompetitors, MaxCompetitors]. Fewer
// competitors suggest an unproven market, more a saturated one. An unknown
// count scores low so a failed lookup is never rewarded as open ground.
func CompetitionScore(count int, t model.Thresholds) float64 {
	switch {
	case count == model.Unknown || count < 0:
		return unknownCompetitionScore
	case count >= t.MinCompetitors && count <= t.MaxCompetitors:
		return maxScore
	case count < t.MinCompetitors:
		return clamp(noCompetitionScore + (maxScore-noCompetitionScore)*float64(count)/float64(t.MinCompetitors))
	default:
		return clamp(float64(maxScore - (count-t.MaxCompetitors)*overcrowdedPenalty))
	}
}

// ComplexityScore favours simple builds.
func ComplexityScore(c model.Complexity) float64 {
	switch c {
	case model.ComplexityLow:
		return 100
	case model.ComplexityHigh:
		return 0
	default:
		return 50
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

func clampInt(v int) int {
	return max(0, min(maxScore, v))
}
