// Package metrics provides Prometheus metrics for the painpoint scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoreBuckets     []float64
	enabled          bool
	registry         prometheus.Registerer

	// Scan lifecycle
	scansTriggered *prometheus.CounterVec
	scansRejected  *prometheus.CounterVec
	scansFinished  *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	activeScans    prometheus.Gauge

	// Pipeline stages
	mentionsCollected    *prometheus.CounterVec
	mentionsFiltered     prometheus.Counter
	collectorFailures    *prometheus.CounterVec
	clustersFormed       prometheus.Gauge
	enrichmentFailures   prometheus.Counter
	enrichmentLatency    prometheus.Histogram
	opportunitiesUpserts *prometheus.CounterVec
	scores               prometheus.Histogram

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "painpoint",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		scoreBuckets:     prometheus.LinearBuckets(10, 10, 10),
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scansTriggered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scans_triggered_total",
		Help: "Scans accepted by the orchestrator, by origin (api, scheduler, cli)",
	}, []string{"origin"})

	m.scansRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scans_rejected_total",
		Help: "Trigger requests rejected, by reason",
	}, []string{"reason"})

	m.scansFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scans_finished_total",
		Help: "Scans that reached a terminal state, by status",
	}, []string{"status"})

	m.scanDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "scan_duration_seconds",
		Help:    "Wall time from running to terminal",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.activeScans = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_scans",
		Help: "Scans currently pending or running (0 or 1)",
	})

	m.mentionsCollected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "mentions_collected_total",
		Help: "Raw mentions returned by collectors, by source",
	}, []string{"source"})

	m.mentionsFiltered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "mentions_filtered_total",
		Help: "Mentions dropped by filter rules or per-scan dedupe",
	})

	m.collectorFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "collector_failures_total",
		Help: "Collector fetches that failed and were skipped, by source",
	}, []string{"source"})

	m.clustersFormed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "clusters_last_scan",
		Help: "Clusters produced by the most recent scan",
	})

	m.enrichmentFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "enrichment_failures_total",
		Help: "Competitor lookups that fell back to unknown signals",
	})

	m.enrichmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "enrichment_latency_milliseconds",
		Help:    "Competitor lookup latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(25, 2, 10),
	})

	m.opportunitiesUpserts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "opportunities_upserted_total",
		Help: "Opportunity records written by scans, by kind (new, updated)",
	}, []string{"kind"})

	m.scores = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "opportunity_score",
		Help:    "Distribution of composite scores produced by scoring passes",
		Buckets: m.scoreBuckets,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Scan requests waiting for the worker",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Maximum scan queue capacity",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"route", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and kind",
	}, []string{"component", "kind"})
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordScanTriggered counts an accepted trigger.
func RecordScanTriggered(origin string) {
	if globalManager.enabled {
		globalManager.scansTriggered.WithLabelValues(origin).Inc()
	}
}

// RecordScanRejected counts a rejected trigger.
func RecordScanRejected(reason string) {
	if globalManager.enabled {
		globalManager.scansRejected.WithLabelValues(reason).Inc()
	}
}

// RecordScanFinished counts a terminal transition and observes its duration.
func RecordScanFinished(status string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.scansFinished.WithLabelValues(status).Inc()
	if seconds > 0 {
		globalManager.scanDuration.Observe(seconds)
	}
}

// UpdateActiveScans sets the number of non-terminal scans.
func UpdateActiveScans(n int) {
	if globalManager.enabled {
		globalManager.activeScans.Set(float64(n))
	}
}

// RecordMentionsCollected adds n mentions for source.
func RecordMentionsCollected(source string, n int) {
	if globalManager.enabled {
		globalManager.mentionsCollected.WithLabelValues(source).Add(float64(n))
	}
}

// RecordMentionsFiltered adds n dropped mentions.
func RecordMentionsFiltered(n int) {
	if globalManager.enabled {
		globalManager.mentionsFiltered.Add(float64(n))
	}
}

// RecordCollectorFailure counts a skipped source.
func RecordCollectorFailure(source string) {
	if globalManager.enabled {
		globalManager.collectorFailures.WithLabelValues(source).Inc()
	}
}

// UpdateClustersFormed records the cluster count of the latest scan.
func UpdateClustersFormed(n int) {
	if globalManager.enabled {
		globalManager.clustersFormed.Set(float64(n))
	}
}

// RecordEnrichmentFailure counts a lookup that degraded to unknown.
func RecordEnrichmentFailure() {
	if globalManager.enabled {
		globalManager.enrichmentFailures.Inc()
	}
}

// RecordEnrichmentLatency observes one lookup.
func RecordEnrichmentLatency(ms float64) {
	if globalManager.enabled {
		globalManager.enrichmentLatency.Observe(ms)
	}
}

// RecordOpportunityUpserted counts one write, kind is "new" or "updated".
func RecordOpportunityUpserted(kind string) {
	if globalManager.enabled {
		globalManager.opportunitiesUpserts.WithLabelValues(kind).Inc()
	}
}

// RecordScore observes a composite score.
func RecordScore(score int) {
	if globalManager.enabled {
		globalManager.scores.Observe(float64(score))
	}
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(n int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(n))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(n))
	}
}

// RecordHTTPRequest counts one request.
func RecordHTTPRequest(route, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration observes request latency in milliseconds.
func RecordHTTPRequestDuration(route, method, statusCode string, ms float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(ms)
	}
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, kind string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
	}
}
