package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/painpoint/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
			convey.So(cfg.ProgressTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Scan.TriggerPerHour, convey.ShouldEqual, 3)
			convey.So(cfg.Scan.MinClusterMentions, convey.ShouldEqual, 2)
			convey.So(cfg.Scan.ReviewTTL, convey.ShouldEqual, 30*24*time.Hour)
			convey.So(cfg.Scoring.RevenueWeight, convey.ShouldEqual, 0.35)
			convey.So(cfg.Scoring.MinRevenueMRR, convey.ShouldEqual, 1000)
			convey.So(cfg.Scoring.MinMentions, convey.ShouldEqual, 20)
			convey.So(cfg.Clustering.Triggers[0], convey.ShouldEqual, "looking for a tool")
		})

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the store driver is unknown", func() {
			cfg.Store.Driver = "mysql"
			err := cfg.Validate()

			convey.Convey("Then it should be rejected as invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store.driver")
			})
		})

		convey.Convey("When a weight is out of range", func() {
			cfg.Scoring.DemandWeight = 1.5
			err := cfg.Validate()

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "demand_weight")
			})
		})

		convey.Convey("When an enabled source is not ordered", func() {
			cfg.Sources.Enabled = []string{"twitter"}
			err := cfg.Validate()

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "twitter")
			})
		})

		convey.Convey("When the queue size is zero", func() {
			cfg.QueueSize = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When terminal write attempts is zero", func() {
			cfg.Scan.TerminalWriteAttempts = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
