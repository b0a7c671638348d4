package model

import (
	"math"
	"time"
)

// Weights per scoring criterion.
type Weights struct {
	Demand      float64 `json:"demand"`
	Revenue     float64 `json:"revenue"`
	Competition float64 `json:"competition"`
	Complexity  float64 `json:"complexity"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Demand + w.Revenue + w.Competition + w.Complexity
}

// Criteria toggles each criterion.
type Criteria struct {
	Demand      bool `json:"demand"`
	Revenue     bool `json:"revenue"`
	Competition bool `json:"competition"`
	Complexity  bool `json:"complexity"`
}

// Thresholds are score cut points and validation minimums.
type Thresholds struct {
	HighScore        int     `json:"high_score"`
	MediumScore      int     `json:"medium_score"`
	ValidationScore  int     `json:"validation_score"`
	MinimalDataScore int     `json:"minimal_data_score"`
	MinCompetitors   int     `json:"min_competitors"`
	MaxCompetitors   int     `json:"max_competitors"`
	MinRevenueMRR    float64 `json:"min_revenue_mrr"`
	MinMentions      int     `json:"min_mentions"`
}

// ScoringConfig is the admin configurable scoring record. Scans take a copy
// at start so edits during a scan do not mix weights within one pass.
type ScoringConfig struct {
	Weights    Weights    `json:"weights"`
	Thresholds Thresholds `json:"thresholds"`
	Enabled    Criteria   `json:"enabled"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// WeightSumTolerance is how far weights may drift from 1.0 at the admin boundary.
const WeightSumTolerance = 0.01

// DefaultScoringConfig mirrors the shipped defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: Weights{Demand: 0.25, Revenue: 0.35, Competition: 0.20, Complexity: 0.20},
		Thresholds: Thresholds{
			HighScore:        80,
			MediumScore:      60,
			ValidationScore:  40,
			MinimalDataScore: 20,
			MinCompetitors:   2,
			MaxCompetitors:   5,
			MinRevenueMRR:    1000,
			MinMentions:      20,
		},
		Enabled: Criteria{Demand: true, Revenue: true, Competition: true, Complexity: true},
	}
}

// EffectiveWeights zeroes the weight of disabled criteria.
func (c ScoringConfig) EffectiveWeights() Weights {
	w := c.Weights
	if !c.Enabled.Demand {
		w.Demand = 0
	}
	if !c.Enabled.Revenue {
		w.Revenue = 0
	}
	if !c.Enabled.Competition {
		w.Competition = 0
	}
	if !c.Enabled.Complexity {
		w.Complexity = 0
	}
	return w
}

// Validate checks an admin submitted config.
func (c ScoringConfig) Validate() error {
	for _, w := range []float64{c.Weights.Demand, c.Weights.Revenue, c.Weights.Competition, c.Weights.Complexity} {
		if w < 0 || w > 1 || math.IsNaN(w) {
			return ErrWeightRange
		}
	}
	if math.Abs(c.Weights.Sum()-1) > WeightSumTolerance {
		return ErrWeightSum
	}
	t := c.Thresholds
	switch {
	case t.MinCompetitors < 0 || t.MaxCompetitors < t.MinCompetitors:
		return ErrCompetitorBounds
	case !(t.MinimalDataScore <= t.ValidationScore && t.ValidationScore <= t.MediumScore && t.MediumScore <= t.HighScore):
		return ErrScoreBands
	case t.MinimalDataScore < 0 || t.HighScore > 100:
		return ErrScoreBands
	case t.MinRevenueMRR < 0 || t.MinMentions < 0:
		return ErrThresholdRange
	}
	return nil
}
