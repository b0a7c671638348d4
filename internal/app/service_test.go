package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/config"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/enrich"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var (
	admin  = scan.Caller{ID: "alice", Role: scan.RoleAdmin}
	viewer = scan.Caller{ID: "bob", Role: "viewer"}
)

type stubCollector struct {
	name     string
	mentions []model.RawMention
	err      error
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) FetchMentions(context.Context) ([]model.RawMention, error) {
	return c.mentions, c.err
}

type stubSearcher struct {
	mu    sync.Mutex
	hits  []enrich.Hit
	calls int
}

func (s *stubSearcher) Search(context.Context, string) ([]enrich.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.hits, nil
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Store.DSN = "file::memory:"
	cfg.Search.RatePerSecond = 100
	cfg.Sources.Order = []string{"reddit", "hackernews"}
	cfg.Sources.Enabled = []string{"reddit", "hackernews"}
	cfg.Scan.TriggerPerHour = 0
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then operations report that it is not started", func() {
			_, err := svc.ScanStatus(context.Background(), "x")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Ready(context.Background()), service.ErrNotStarted), ShouldBeTrue)
			So(svc.SweepProgress(), ShouldEqual, 0)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service on an in-memory store", t, func() {
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithCollectors(&stubCollector{name: "reddit"}, &stubCollector{name: "hackernews"}),
			service.WithSearcher(&stubSearcher{}),
			service.WithScheduler(false),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then it is started and ready", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["sources"], ShouldResemble, []string{"hackernews", "reddit"})
			So(svc.Ready(ctx), ShouldBeNil)
			So(svc.AvailableSources(), ShouldResemble, []string{"reddit", "hackernews"})
		})

		Convey("Then starting twice is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				svc.Stop()
			})
		})
	})
}

func TestService_Settings(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithCollectors(&stubCollector{name: "reddit"}, &stubCollector{name: "hackernews"}),
			service.WithSearcher(&stubSearcher{}),
			service.WithScheduler(false),
		)
		defer svc.Stop()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then the scoring config is seeded from defaults", func() {
			cfg, err := svc.ScoringConfig(ctx)
			So(err, ShouldBeNil)
			So(cfg.Weights.Revenue, ShouldEqual, 0.35)
			So(cfg.Thresholds.HighScore, ShouldEqual, 80)
		})

		Convey("When an admin stores valid weights", func() {
			cfg, _ := svc.ScoringConfig(ctx)
			cfg.Weights = model.Weights{Demand: 0.4, Revenue: 0.3, Competition: 0.2, Complexity: 0.1}
			_, err := svc.UpdateScoringConfig(ctx, admin, cfg)
			So(err, ShouldBeNil)

			Convey("Then they are read back", func() {
				got, _ := svc.ScoringConfig(ctx)
				So(got.Weights.Demand, ShouldEqual, 0.4)
			})
		})

		Convey("When weights do not sum to one", func() {
			cfg, _ := svc.ScoringConfig(ctx)
			cfg.Weights.Demand = 0.9
			_, err := svc.UpdateScoringConfig(ctx, admin, cfg)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a viewer changes the config", func() {
			cfg, _ := svc.ScoringConfig(ctx)
			_, err := svc.UpdateScoringConfig(ctx, viewer, cfg)
			So(errors.Is(err, scan.ErrPermissionDenied), ShouldBeTrue)
		})

		Convey("Then enabled sources are seeded and validated", func() {
			names, err := svc.EnabledSources(ctx)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"reddit", "hackernews"})

			_, err = svc.UpdateEnabledSources(ctx, admin, []string{"twitter"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.UpdateEnabledSources(ctx, admin, nil)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			names, err = svc.UpdateEnabledSources(ctx, admin, []string{"hackernews", "hackernews"})
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"hackernews"})
		})
	})
}
