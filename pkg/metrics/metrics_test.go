package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithScoreBuckets([]float64{50, 80}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector is registered", func() {
				So(manager, ShouldNotBeNil)
				manager.scansTriggered.WithLabelValues("api").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "test_unit_")
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording scan lifecycle events", func() {
			before := testutil.ToFloat64(globalManager.scansFinished.WithLabelValues("completed"))
			RecordScanTriggered("api")
			RecordScanFinished("completed", 3.5)
			RecordScanRejected("scan_in_progress")
			UpdateActiveScans(1)

			Convey("Then counters move", func() {
				after := testutil.ToFloat64(globalManager.scansFinished.WithLabelValues("completed"))
				So(after-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.activeScans), ShouldEqual, 1)
			})
		})

		Convey("When recording pipeline stage events", func() {
			before := testutil.ToFloat64(globalManager.mentionsCollected.WithLabelValues("reddit"))
			RecordMentionsCollected("reddit", 7)
			RecordMentionsFiltered(2)
			RecordCollectorFailure("reddit")
			UpdateClustersFormed(4)
			RecordEnrichmentFailure()
			RecordEnrichmentLatency(120)
			RecordOpportunityUpserted("new")
			RecordScore(88)
			UpdateQueueSize(0)
			UpdateQueueCapacity(4)
			RecordHTTPRequest("/api/v1/scans", "POST", "202")
			RecordHTTPRequestDuration("/api/v1/scans", "POST", "202", 2)
			RecordErrorByComponent("worker", "panic")

			Convey("Then values are observable", func() {
				after := testutil.ToFloat64(globalManager.mentionsCollected.WithLabelValues("reddit"))
				So(after-before, ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.clustersFormed), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 4)
			})
		})

		Convey("GetRegistry exposes the private registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
