package scoring

import (
	"math"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/validation"
)

// Assess runs a full scoring pass over o with cfg: the composite score, the
// auxiliary scores, the display fields and the validation verdict. Overrides
// on o are honoured. It is used by scans, rescore and admin overrides alike.
func Assess(o *model.Opportunity, cfg model.ScoringConfig) Breakdown {
	b := Compute(InputFromOpportunity(o), cfg)
	o.Score = b.Score
	o.ProblemScore = int(math.Round(b.Demand))
	o.FeasibilityScore = int(math.Round(b.Complexity))
	o.WhyNowScore = int(math.Round(b.Competition))

	o.CompetitionLevel = Level(o.CompetitorCount)
	o.RevenueDisplay = RevenueDisplay(o.RevenueAmount)
	o.MarketSize = MarketSize(o.MentionCount, o.EffectiveB2B())

	o.Validated, o.Recommendation = validation.Verdict(o.Score, validation.InputFromOpportunity(o), cfg.Thresholds)
	return b
}
