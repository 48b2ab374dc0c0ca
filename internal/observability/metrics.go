package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coastal_alert"

// Metrics holds the Prometheus collectors for the report pipeline and its adapters.
type Metrics struct {
	ReportsConsumed   prometheus.Counter
	DecisionsProduced prometheus.Counter
	EvaluationErrors  prometheus.Counter
	PipelineRunning   prometheus.Gauge

	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Evidence outcomes.
	Decisions           *prometheus.CounterVec // labels: decision
	ConsistencyVerdicts *prometheus.CounterVec // labels: verdict
	MediaQuality        prometheus.Histogram

	// Upstream services.
	EmbedRequests         *prometheus.CounterVec // labels: outcome={success,error}
	EmbedCache            *prometheus.CounterVec // labels: result={hit,miss}
	VisionRequestDuration prometheus.Histogram
	GeocodeRequests       *prometheus.CounterVec // labels: outcome={success,error,empty}
}

// NewMetrics creates all collectors and registers them with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_consumed_total",
			Help:      "Total reports read from the source topic.",
		}),
		DecisionsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_produced_total",
			Help:      "Total assessments written to the sink topic.",
		}),
		EvaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Reports skipped because they could not be parsed or scored.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of reports per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete consume-evaluate-produce cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Fusion decisions by decision code.",
		}, []string{"decision"}),
		ConsistencyVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_verdicts_total",
			Help:      "Text-vision consistency verdicts.",
		}, []string{"verdict"}),
		MediaQuality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "media_quality_score",
			Help:      "Quality score of submitted media.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		EmbedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_requests_total",
			Help:      "Embedding API requests by outcome.",
		}, []string{"outcome"}),
		EmbedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		VisionRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_request_duration_seconds",
			Help:      "Vision scorer request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReportsConsumed,
		m.DecisionsProduced,
		m.EvaluationErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Decisions,
		m.ConsistencyVerdicts,
		m.MediaQuality,
		m.EmbedRequests,
		m.EmbedCache,
		m.VisionRequestDuration,
		m.GeocodeRequests,
	}
}
