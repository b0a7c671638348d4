package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/painpoint/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.Scan.Schedule, convey.ShouldEqual, "@every 6h")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PAINPOINT_ADDR", ":8080")
			_ = os.Setenv("PAINPOINT_QUEUE_SIZE", "4")
			_ = os.Setenv("PAINPOINT_STORE__DRIVER", "postgres")
			_ = os.Setenv("PAINPOINT_STORE__DSN", "postgres://localhost/painpoint")
			_ = os.Setenv("PAINPOINT_SCAN__LEASE_TTL", "90s")
			_ = os.Setenv("PAINPOINT_SOURCES__ENABLED", "reddit, fixture")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 4)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "postgres://localhost/painpoint")
				convey.So(cfg.Scan.LeaseTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Sources.Enabled, convey.ShouldResemble, []string{"reddit", "fixture"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 8
progress_ttl: 2h
scan:
  min_cluster_mentions: 3
  schedule: ""
scoring:
  demand_weight: 0.4
  revenue_weight: 0.3
clustering:
  triggers:
    - "wish there was"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PAINPOINT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 8)
				convey.So(cfg.ProgressTTL, convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.Scan.MinClusterMentions, convey.ShouldEqual, 3)
				convey.So(cfg.Scan.Schedule, convey.ShouldEqual, "")
				convey.So(cfg.Scan.TriggerPerHour, convey.ShouldEqual, 3)
				convey.So(cfg.Scoring.DemandWeight, convey.ShouldEqual, 0.4)
				convey.So(cfg.Scoring.CompetitionWeight, convey.ShouldEqual, 0.2)
				convey.So(cfg.Clustering.Triggers, convey.ShouldResemble, []string{"wish there was"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 8
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PAINPOINT_CONFIG", tmpFile)
			_ = os.Setenv("PAINPOINT_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PAINPOINT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PAINPOINT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PAINPOINT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PAINPOINT_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PAINPOINT_CONFIG",
		"PAINPOINT_ADDR",
		"PAINPOINT_QUEUE_SIZE",
		"PAINPOINT_STORE__DRIVER",
		"PAINPOINT_STORE__DSN",
		"PAINPOINT_SCAN__LEASE_TTL",
		"PAINPOINT_SOURCES__ENABLED",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "painpoint-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
