package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for a kmknn index: build
// and search timings, cluster pruning counts, and queue admissions.
// There is no server, cache, or tenant layer here, so those metric
// families are not carried.
//
// Each Metrics uses its own prometheus.Registry so constructing one per
// Prebuilt (as tests do) never collides with promauto's default global
// registry.
type Metrics struct {
	registry *prometheus.Registry

	BuildDuration   prometheus.Histogram
	ClustersPruned  prometheus.Counter
	ClustersTotal   prometheus.Gauge
	SearchLatency   *prometheus.HistogramVec
	QueueAdmissions prometheus.Counter
}

// NewMetrics creates and registers a fresh set of metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kmknn_build_duration_seconds",
			Help:    "Time to construct a Prebuilt index",
			Buckets: prometheus.DefBuckets,
		}),
		ClustersPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "kmknn_clusters_pruned_total",
			Help: "Total clusters skipped via the triangle-inequality lower bound, across all searches",
		}),
		ClustersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kmknn_clusters_total",
			Help: "Number of surviving clusters in the most recently built index",
		}),
		SearchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kmknn_search_latency_seconds",
			Help:    "Search latency in seconds by operation (knn_by_index, knn_by_query, radius_by_index, radius_by_query)",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		QueueAdmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "kmknn_queue_admissions_total",
			Help: "Total candidates admitted into a NeighborQueue across all searches",
		}),
	}
}

// Registry exposes the underlying registry, e.g. for a host program to
// mount alongside its own /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordBuild records the duration of a Build call and the surviving
// cluster count.
func (m *Metrics) RecordBuild(duration time.Duration, clusters int) {
	m.BuildDuration.Observe(duration.Seconds())
	m.ClustersTotal.Set(float64(clusters))
}

// RecordSearch records the latency of a single search call.
func (m *Metrics) RecordSearch(operation string, duration time.Duration) {
	m.SearchLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordClustersPruned increments the pruned-cluster counter by n.
func (m *Metrics) RecordClustersPruned(n int) {
	m.ClustersPruned.Add(float64(n))
}

// RecordQueueAdmission increments the queue-admission counter.
func (m *Metrics) RecordQueueAdmission() {
	m.QueueAdmissions.Inc()
}
