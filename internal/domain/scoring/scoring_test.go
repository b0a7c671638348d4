package scoring_test

import (
	"math/rand"
	"testing"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSubScores(t *testing.T) {
	th := model.DefaultScoringConfig().Thresholds

	Convey("Given the sub-score functions", t, func() {
		Convey("Demand is monotonic and saturates at 100", func() {
			prev := -1.0
			for m := 0; m <= 10_000; m += 7 {
				d := scoring.DemandScore(m, 3)
				So(d, ShouldBeGreaterThanOrEqualTo, prev)
				So(d, ShouldBeLessThanOrEqualTo, 100)
				prev = d
			}
			So(scoring.DemandScore(100, 3), ShouldEqual, 100)
			So(scoring.DemandScore(0, 0), ShouldEqual, 0)
		})

		Convey("Revenue is zero without evidence and for the unknown sentinel", func() {
			So(scoring.RevenueScore(0), ShouldEqual, 0)
			So(scoring.RevenueScore(model.Unknown), ShouldEqual, 0)
			So(scoring.RevenueScore(10_000), ShouldEqual, 100)
			So(scoring.RevenueScore(1_000_000), ShouldEqual, 100)
			So(scoring.RevenueScore(2000), ShouldBeBetween, 80, 85)
		})

		Convey("Competition peaks inside the ideal range", func() {
			So(scoring.CompetitionScore(2, th), ShouldEqual, 100)
			So(scoring.CompetitionScore(5, th), ShouldEqual, 100)
			So(scoring.CompetitionScore(1, th), ShouldEqual, 70)
			So(scoring.CompetitionScore(0, th), ShouldEqual, 40)
			So(scoring.CompetitionScore(7, th), ShouldEqual, 80)
			So(scoring.CompetitionScore(50, th), ShouldEqual, 0)
		})

		Convey("Unknown competition is not rewarded as an open market", func() {
			So(scoring.CompetitionScore(model.Unknown, th), ShouldBeLessThan, scoring.CompetitionScore(0, th))
		})

		Convey("Simpler builds score higher", func() {
			So(scoring.ComplexityScore(model.ComplexityLow), ShouldEqual, 100)
			So(scoring.ComplexityScore(model.ComplexityMedium), ShouldEqual, 50)
			So(scoring.ComplexityScore(model.ComplexityHigh), ShouldEqual, 0)
		})
	})
}

func TestCompositeScore(t *testing.T) {
	Convey("Given weights that sum to 1.0", t, func() {
		cfg := model.DefaultScoringConfig()

		Convey("When every sub-score is at its maximum", func() {
			in := scoring.Input{MentionCount: 500, SourceDiversity: 4, RevenueAmount: 50_000, CompetitorCount: 3, Complexity: model.ComplexityLow}
			So(scoring.Score(in, cfg), ShouldEqual, 100)
		})

		Convey("When every sub-score is at its minimum", func() {
			in := scoring.Input{MentionCount: 0, SourceDiversity: 0, RevenueAmount: 0, CompetitorCount: 100, Complexity: model.ComplexityHigh}
			So(scoring.Score(in, cfg), ShouldEqual, 0)
		})

		Convey("When inputs are arbitrary the score stays in range", func() {
			rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
			levels := []model.Complexity{model.ComplexityLow, model.ComplexityMedium, model.ComplexityHigh, model.ComplexityNone}
			for i := 0; i < 2000; i++ {
				in := scoring.Input{
					MentionCount:    rng.Intn(5000) - 10,
					SourceDiversity: rng.Intn(6),
					RevenueAmount:   float64(rng.Intn(100_000) - 1),
					CompetitorCount: rng.Intn(40) - 1,
					Complexity:      levels[rng.Intn(len(levels))],
				}
				s := scoring.Score(in, cfg)
				So(s, ShouldBeBetweenOrEqual, 0, 100)
			}
		})

		Convey("When a criterion is disabled its weight is zero for the pass", func() {
			in := scoring.Input{MentionCount: 25, SourceDiversity: 3, RevenueAmount: 2000, CompetitorCount: 4, Complexity: model.ComplexityLow}
			full := scoring.Compute(in, cfg)
			cfg.Enabled.Revenue = false
			partial := scoring.Compute(in, cfg)

			So(partial.Revenue, ShouldEqual, full.Revenue)
			So(partial.Score, ShouldBeLessThan, full.Score)
			So(cfg.Weights.Revenue, ShouldEqual, 0.35)
		})
	})
}

func TestEvidenceProfiles(t *testing.T) {
	cfg := model.DefaultScoringConfig()

	Convey("A well-evidenced, easy to build B2B niche scores in the build band", t, func() {
		in := scoring.Input{MentionCount: 25, SourceDiversity: 3, RevenueAmount: 2000, CompetitorCount: 4, Complexity: model.ComplexityLow}
		b := scoring.Compute(in, cfg)

		So(b.Score, ShouldBeBetweenOrEqual, 70, 99)
		So(b.Score, ShouldEqual, 88)
	})

	Convey("A thinly discussed consumer idea without competitors is rejected", t, func() {
		texts := []string{"wish there was a fitness recipe planner for my personal diet"}
		in := scoring.Input{
			MentionCount:    5,
			SourceDiversity: 1,
			RevenueAmount:   0,
			CompetitorCount: 0,
			Complexity:      scoring.ClassifyComplexity(texts...),
		}
		So(scoring.Score(in, cfg), ShouldBeLessThan, 40)
		So(scoring.IsB2B(texts...), ShouldBeFalse)
	})
}

func TestClassifiers(t *testing.T) {
	Convey("Given complexity keywords", t, func() {
		So(scoring.ComplexityKeywordScore("a simple dashboard"), ShouldEqual, 60)
		So(scoring.ClassifyComplexity("a simple dashboard"), ShouldEqual, model.ComplexityLow)
		So(scoring.ClassifyComplexity("sync via api"), ShouldEqual, model.ComplexityMedium)
		So(scoring.ClassifyComplexity("machine learning model with computer vision"), ShouldEqual, model.ComplexityHigh)

		Convey("Keywords match whole words only", func() {
			So(scoring.ComplexityKeywordScore("maintain a spreadsheet"), ShouldEqual, 50)
		})

		Convey("Each keyword counts once", func() {
			So(scoring.ComplexityKeywordScore("dashboard", "dashboard dashboard"), ShouldEqual, 60)
		})
	})

	Convey("Given B2B keywords", t, func() {
		So(scoring.IsB2B("our team needs workflow automation"), ShouldBeTrue)
		So(scoring.IsB2B("personal fitness tracker"), ShouldBeFalse)
		So(scoring.IsB2B("a thing"), ShouldBeFalse)
		So(scoring.IsB2B("startup team social app"), ShouldBeTrue)
	})

	Convey("Given competitor counts", t, func() {
		So(scoring.Level(model.Unknown), ShouldEqual, model.CompetitionUnknown)
		So(scoring.Level(0), ShouldEqual, model.CompetitionLow)
		So(scoring.Level(4), ShouldEqual, model.CompetitionMedium)
		So(scoring.Level(8), ShouldEqual, model.CompetitionHigh)
		So(scoring.Level(11), ShouldEqual, model.CompetitionVeryHigh)
	})

	Convey("Given revenue amounts", t, func() {
		So(scoring.RevenueDisplay(2000), ShouldEqual, "$2,000 MRR")
		So(scoring.RevenueDisplay(0), ShouldEqual, "No revenue evidence")
		So(scoring.RevenueDisplay(model.Unknown), ShouldEqual, "Unknown")
	})

	Convey("Given market size inputs", t, func() {
		So(scoring.MarketSize(25, true), ShouldEqual, "Growing B2B niche")
		So(scoring.MarketSize(3, false), ShouldEqual, "Small consumer niche")
		So(scoring.MarketSize(80, true), ShouldEqual, "Established B2B demand")
	})
}

func TestAssess(t *testing.T) {
	cfg := model.DefaultScoringConfig()

	Convey("Given the scenario A record", t, func() {
		o := &model.Opportunity{
			MentionCount:    25,
			SourceCounts:    map[string]int{"reddit": 10, "hackernews": 10, "fixture": 5},
			RevenueAmount:   2000,
			CompetitorCount: 4,
			PaidSignal:      true,
			Complexity:      model.ComplexityLow,
			B2B:             true,
		}
		scoring.Assess(o, cfg)

		Convey("Then it is validated and told to build", func() {
			So(o.Score, ShouldEqual, 88)
			So(o.Validated, ShouldBeTrue)
			So(o.Recommendation, ShouldEqual, "Build immediately")
			So(o.CompetitionLevel, ShouldEqual, model.CompetitionMedium)
			So(o.RevenueDisplay, ShouldEqual, "$2,000 MRR")
			So(o.FeasibilityScore, ShouldEqual, 100)
			So(o.WhyNowScore, ShouldEqual, 100)
			So(o.MarketSize, ShouldEqual, "Growing B2B niche")
		})

		Convey("When an admin overrides B2B off", func() {
			no := false
			o.B2BOverride = &no
			scoring.Assess(o, cfg)

			Convey("Then validation fails but the score is unchanged", func() {
				So(o.Score, ShouldEqual, 88)
				So(o.Validated, ShouldBeFalse)
				So(o.Recommendation, ShouldEqual, "Strong candidate — validate before building")
			})
		})

		Convey("When an admin overrides complexity to High", func() {
			o.ComplexityOverride = model.ComplexityHigh
			scoring.Assess(o, cfg)

			Convey("Then the complexity weight is lost", func() {
				So(o.Score, ShouldEqual, 68)
				So(o.FeasibilityScore, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a record whose enrichment failed", t, func() {
		o := &model.Opportunity{MentionCount: 40, SourceCounts: map[string]int{"reddit": 40},
			RevenueAmount: model.Unknown, CompetitorCount: model.Unknown, PaidSignal: true, B2B: true}
		scoring.Assess(o, cfg)

		So(o.Validated, ShouldBeFalse)
		So(o.RevenueDisplay, ShouldEqual, "Unknown")
		So(o.CompetitionLevel, ShouldEqual, model.CompetitionUnknown)
	})
}
