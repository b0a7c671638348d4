package validation_test

import (
	"testing"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/validation"
	. "github.com/smartystreets/goconvey/convey"
)

func passing() validation.Input {
	return validation.Input{
		PaidSignal:      true,
		CompetitorCount: 4,
		RevenueAmount:   2000,
		MentionCount:    25,
		B2B:             true,
	}
}

func TestValidate(t *testing.T) {
	th := model.DefaultScoringConfig().Thresholds

	Convey("Given an input that satisfies every predicate", t, func() {
		So(validation.Validate(passing(), th), ShouldBeTrue)

		cases := map[string]func(*validation.Input){
			"no paid signal":        func(in *validation.Input) { in.PaidSignal = false },
			"zero competitors":      func(in *validation.Input) { in.CompetitorCount = 0 },
			"unknown competitors":   func(in *validation.Input) { in.CompetitorCount = model.Unknown },
			"revenue below minimum": func(in *validation.Input) { in.RevenueAmount = 999 },
			"unknown revenue":       func(in *validation.Input) { in.RevenueAmount = model.Unknown },
			"too few mentions":      func(in *validation.Input) { in.MentionCount = 19 },
			"consumer only":         func(in *validation.Input) { in.B2B = false },
		}
		for name, mutate := range cases {
			Convey("When exactly one predicate fails: "+name, func() {
				in := passing()
				mutate(&in)
				So(validation.Validate(in, th), ShouldBeFalse)

				Convey("Then the verdict is unvalidated regardless of score", func() {
					ok, rec := validation.Verdict(100, in, th)
					So(ok, ShouldBeFalse)
					So(rec, ShouldNotEqual, validation.BuildImmediately)
				})
			})
		}

		Convey("Boundary values satisfy the predicates", func() {
			in := passing()
			in.RevenueAmount = 1000
			in.MentionCount = 20
			in.CompetitorCount = 1
			So(validation.Validate(in, th), ShouldBeTrue)
		})
	})
}

func TestOverrides(t *testing.T) {
	Convey("Given an opportunity whose heuristic says consumer", t, func() {
		yes := true
		o := &model.Opportunity{PaidSignal: true, CompetitorCount: 3, RevenueAmount: 5000, MentionCount: 30, B2B: false}
		th := model.DefaultScoringConfig().Thresholds

		So(validation.Validate(validation.InputFromOpportunity(o), th), ShouldBeFalse)

		Convey("When an admin overrides B2B", func() {
			o.B2BOverride = &yes
			So(validation.Validate(validation.InputFromOpportunity(o), th), ShouldBeTrue)
		})
	})
}

func TestRecommend(t *testing.T) {
	th := model.DefaultScoringConfig().Thresholds

	Convey("Given the recommendation table", t, func() {
		rows := []struct {
			score     int
			validated bool
			want      string
		}{
			{100, true, validation.BuildImmediately},
			{80, true, validation.BuildImmediately},
			{95, false, validation.ValidateBeforeBuild},
			{79, true, validation.ValidateLandingPage},
			{60, true, validation.ValidateLandingPage},
			{60, false, validation.ValidateBeforeBuild},
			{59, true, validation.HighRisk},
			{40, false, validation.HighRisk},
			{39, true, validation.RejectInsufficient},
			{20, false, validation.RejectInsufficient},
			{19, true, validation.RejectMinimalData},
			{0, false, validation.RejectMinimalData},
		}
		for _, r := range rows {
			So(validation.Recommend(r.score, r.validated, th), ShouldEqual, r.want)
		}
	})

	Convey("Recommendation strings are fixed", t, func() {
		So(validation.ValidateBeforeBuild, ShouldEqual, "Strong candidate — validate before building")
		So(validation.RejectInsufficient, ShouldEqual, "Reject — insufficient validation, do not build")
	})
}
