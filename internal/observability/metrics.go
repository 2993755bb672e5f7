package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	Predictions      *prometheus.CounterVec // labels: forest, variant, label={0,1}
	PredictionErrors *prometheus.CounterVec // labels: kind={not_found,invalid_input,schema_mismatch,internal}

	// Store metrics.
	CacheLookups         *prometheus.CounterVec   // labels: kind={dataset,model,report}, result={hit,miss}
	ArtifactLoadDuration *prometheus.HistogramVec // labels: kind={dataset,model}

	// Acquisition metrics.
	Downloads *prometheus.CounterVec // labels: outcome={success,not_found,error}

	// Prediction event metrics.
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter

	Ready prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served by forest, model variant, and label.",
		}, []string{"forest", "variant", "label"}),
		PredictionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed prediction requests by error kind.",
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Artifact cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		ArtifactLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_load_duration_seconds",
			Help:      "Time to read and parse a dataset or model from disk.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Remote artifact downloads by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_events_published_total",
			Help:      "Prediction events written to Kafka.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_events_failed_total",
			Help:      "Prediction events that could not be written to Kafka.",
		}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "1 when the dashboard can serve predictions, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.Predictions,
		m.PredictionErrors,
		m.CacheLookups,
		m.ArtifactLoadDuration,
		m.Downloads,
		m.EventsPublished,
		m.EventsFailed,
		m.Ready,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Predictions:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "predictions_total"}, []string{"forest", "variant", "label"}),
		PredictionErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "prediction_errors_total"}, []string{"kind"}),
		CacheLookups:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total"}, []string{"kind", "result"}),
		ArtifactLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "artifact_load_duration_seconds"}, []string{"kind"}),
		Downloads:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "downloads_total"}, []string{"outcome"}),
		EventsPublished:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "prediction_events_published_total"}),
		EventsFailed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "prediction_events_failed_total"}),
		Ready:                prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ready"}),
	}
}
