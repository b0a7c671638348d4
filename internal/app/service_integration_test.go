package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/enrich"
	"github.com/okian/painpoint/internal/scan"
	. "github.com/smartystreets/goconvey/convey"
)

var observed = time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

func redditMentions() []model.RawMention {
	return []model.RawMention{
		{Source: "reddit", ExternalID: "r1", Title: "Need a tool for tracking client invoices", Text: "Our agency loses hours every month.", URL: "https://reddit.example/r1", ObservedAt: observed},
		{Source: "reddit", ExternalID: "r2", Title: "Wish there was a cheap way", Text: "need a tool for tracking client invoicing across B2B clients", URL: "https://reddit.example/r2", ObservedAt: observed.Add(time.Hour)},
		{Source: "reddit", ExternalID: "r3", Title: "Lovely weather", Text: "nothing to see", URL: "https://reddit.example/r3", ObservedAt: observed, Engagement: model.Engagement{Upvotes: 10, Comments: 5}},
	}
}

func waitTerminal(ctx context.Context, svc *service.Service, id string) model.Snapshot {
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := svc.ScanStatus(ctx, id)
		if err == nil && snap.Status.Terminal() {
			return snap
		}
		if time.Now().After(deadline) {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service with full integration", t, func() {
		searcher := &stubSearcher{hits: []enrich.Hit{
			{Title: "InvoiceBot pricing", URL: "https://invoicebot.io/pricing", Snippet: "Plans from $29/month. Now at $2,000 MRR."},
			{Title: "Billfold", URL: "https://billfold.app", Snippet: "Client invoice tracking"},
			{Title: "r/SaaS thread", URL: "https://www.reddit.com/r/SaaS/x", Snippet: "what do you use"},
		}}
		hn := &stubCollector{name: "hackernews", mentions: []model.RawMention{
			{Source: "hackernews", ExternalID: "h1", Text: "I need a tool for tracking client invoices, the spreadsheet is dying", URL: "https://hn.example/h1", ObservedAt: observed},
		}}
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithCollectors(&stubCollector{name: "reddit", mentions: redditMentions()}, hn),
			service.WithSearcher(searcher),
			service.WithScheduler(false),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a scan is triggered and polled to completion", func() {
			snap, err := svc.TriggerScan(ctx, admin, nil, scan.OriginAPI)
			So(err, ShouldBeNil)
			So(snap.Status, ShouldEqual, model.ScanPending)

			final := waitTerminal(ctx, svc, snap.ID)

			Convey("Then it completes under the same identifier", func() {
				So(final.ID, ShouldEqual, snap.ID)
				So(final.Status, ShouldEqual, model.ScanCompleted)
				So(final.Progress, ShouldEqual, 100)
				So(final.Found, ShouldEqual, 1)

				job, err := svc.Scan(ctx, snap.ID)
				So(err, ShouldBeNil)
				So(job.Origin, ShouldEqual, scan.OriginAPI)
				So(job.TriggeredBy, ShouldEqual, "alice")
			})

			Convey("Then the opportunity is listed with enrichment", func() {
				page, err := svc.ListOpportunities(ctx, model.OpportunityFilter{})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
				opp := page.Items[0]
				So(opp.MentionCount, ShouldEqual, 3)
				So(opp.CompetitorCount, ShouldEqual, 2)
				So(opp.PaidSignal, ShouldBeTrue)
				So(opp.RevenueAmount, ShouldEqual, 2000.0)
				So(opp.Rank, ShouldEqual, 1)
			})

			Convey("Then the trigger-less mention waits for review", func() {
				page, err := svc.Review(ctx, 10, 0)
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
				So(page.Items[0].MentionKey, ShouldEqual, "reddit:r3")
			})

			Convey("Then history and stats include it", func() {
				jobs, err := svc.ListScans(ctx, 0)
				So(err, ShouldBeNil)
				So(jobs, ShouldHaveLength, 1)
				stats, err := svc.ScanStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Opportunities, ShouldEqual, 1)

				ostats, err := svc.OpportunityStats(ctx)
				So(err, ShouldBeNil)
				So(ostats.Total, ShouldEqual, 1)
			})

			Convey("When the user rejects the opportunity", func() {
				page, _ := svc.ListOpportunities(ctx, model.OpportunityFilter{})
				id := page.Items[0].ID
				rejected := model.StatusRejected
				notes := "too crowded"
				opp, err := svc.PatchOpportunity(ctx, viewer, id, model.OpportunityPatch{Status: &rejected, Notes: &notes})
				So(err, ShouldBeNil)

				Convey("Then it leaves the ranking but keeps its notes", func() {
					So(opp.Status, ShouldEqual, model.StatusRejected)
					So(opp.Notes, ShouldEqual, "too crowded")
					So(opp.Rank, ShouldEqual, 0)
				})
			})

			Convey("When a viewer sets an override", func() {
				page, _ := svc.ListOpportunities(ctx, model.OpportunityFilter{})
				high := model.ComplexityHigh
				_, err := svc.PatchOpportunity(ctx, viewer, page.Items[0].ID, model.OpportunityPatch{ComplexityOverride: &high})
				So(errors.Is(err, scan.ErrPermissionDenied), ShouldBeTrue)
			})

			Convey("When an admin forces high complexity", func() {
				page, _ := svc.ListOpportunities(ctx, model.OpportunityFilter{})
				before := page.Items[0]
				high := model.ComplexityHigh
				opp, err := svc.PatchOpportunity(ctx, admin, before.ID, model.OpportunityPatch{ComplexityOverride: &high})
				So(err, ShouldBeNil)

				Convey("Then the record is rescored", func() {
					So(opp.ComplexityOverride, ShouldEqual, model.ComplexityHigh)
					So(opp.FeasibilityScore, ShouldEqual, 0)
					So(opp.Score, ShouldBeLessThanOrEqualTo, before.Score)
				})
			})

			Convey("When an admin rescores with new weights", func() {
				cfg, _ := svc.ScoringConfig(ctx)
				cfg.Weights = model.Weights{Demand: 1, Revenue: 0, Competition: 0, Complexity: 0}
				_, err := svc.UpdateScoringConfig(ctx, admin, cfg)
				So(err, ShouldBeNil)

				res, err := svc.Rescore(ctx, admin)
				So(err, ShouldBeNil)

				Convey("Then every record is reassessed", func() {
					So(res.Total, ShouldEqual, 1)
					page, _ := svc.ListOpportunities(ctx, model.OpportunityFilter{})
					So(page.Items[0].Score, ShouldEqual, page.Items[0].ProblemScore)
				})
			})

			Convey("When a viewer asks for a rescore", func() {
				_, err := svc.Rescore(ctx, viewer)
				So(errors.Is(err, scan.ErrPermissionDenied), ShouldBeTrue)
			})
		})

		Convey("When listing with bad input", func() {
			_, err := svc.ListOpportunities(ctx, model.OpportunityFilter{Status: "archived"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.ListOpportunities(ctx, model.OpportunityFilter{Sort: "random"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When an opportunity does not exist", func() {
			_, err := svc.GetOpportunity(ctx, "missing")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("When sweeping", func() {
			n, err := svc.ExpireReview(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}
