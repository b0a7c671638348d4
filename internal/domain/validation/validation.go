// Package validation gates a scored opportunity into a verdict.
package validation

import (
	"github.com/okian/painpoint/internal/domain/model"
)

// Recommendations, one per score band and validation outcome.
const (
	BuildImmediately    = "Build immediately"
	ValidateBeforeBuild = "Strong candidate — validate before building"
	ValidateLandingPage = "Strong candidate — validate with landing page before building"
	HighRisk            = "High risk — need unique angle, proceed with caution"
	RejectInsufficient  = "Reject — insufficient validation, do not build"
	RejectMinimalData   = "Reject — minimal data, do not build"
)

// Input holds the signals the validation predicates read.
type Input struct {
	PaidSignal      bool
	CompetitorCount int     // model.Unknown when enrichment failed
	RevenueAmount   float64 // model.Unknown when enrichment failed
	MentionCount    int
	B2B             bool // after override
}

// Predicates is the outcome of each rule, in rule order.
type Predicates struct {
	PaidCompetitor bool
	Revenue        bool
	Mentions       bool
	B2B            bool
}

// All reports whether every predicate held.
func (p Predicates) All() bool {
	return p.PaidCompetitor && p.Revenue && p.Mentions && p.B2B
}

// InputFromOpportunity reads the persisted signals of o, applying overrides.
func InputFromOpportunity(o *model.Opportunity) Input {
	return Input{
		PaidSignal:      o.PaidSignal,
		CompetitorCount: o.CompetitorCount,
		RevenueAmount:   o.RevenueAmount,
		MentionCount:    o.MentionCount,
		B2B:             o.EffectiveB2B(),
	}
}

// Check evaluates the four predicates. Unknown values never satisfy a rule.
func Check(in Input, t model.Thresholds) Predicates {
	return Predicates{
		PaidCompetitor: in.PaidSignal && in.CompetitorCount != model.Unknown && in.CompetitorCount >= 1,
		Revenue:        in.RevenueAmount != model.Unknown && in.RevenueAmount > 0 && in.RevenueAmount >= t.MinRevenueMRR,
		Mentions:       in.MentionCount >= t.MinMentions,
		B2B:            in.B2B,
	}
}

// Validate reports whether every predicate holds.
func Validate(in Input, t model.Thresholds) bool {
	return Check(in, t).All()
}

// Recommend maps a score band and validation flag to a verdict. At or above
// HighScore an unvalidated record gets the same advice as the band below it.
func Recommend(score int, validated bool, t model.Thresholds) string {
	switch {
	case score >= t.HighScore && validated:
		return BuildImmediately
	case score >= t.HighScore:
		return ValidateBeforeBuild
	case score >= t.MediumScore && validated:
		return ValidateLandingPage
	case score >= t.MediumScore:
		return ValidateBeforeBuild
	case score >= t.ValidationScore:
		return HighRisk
	case score >= t.MinimalDataScore:
		return RejectInsufficient
	default:
		return RejectMinimalData
	}
}

// Verdict bundles Validate and Recommend.
func Verdict(score int, in Input, t model.Thresholds) (bool, string) {
	ok := Validate(in, t)
	return ok, Recommend(score, ok, t)
}
