// Package metrics provides Prometheus metrics for inference and evaluation
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the collectors exposed on /metrics
type Metrics struct {
	registry *prometheus.Registry

	predictionsTotal    *prometheus.CounterVec
	providerErrorsTotal *prometheus.CounterVec
	predictDuration     prometheus.Histogram
	cacheHitsTotal      prometheus.Counter

	evaluationsTotal  *prometheus.CounterVec
	validPairs        prometheus.Gauge
	nullPredictions   prometheus.Gauge
	unmatchedPairs    prometheus.Gauge
	aggregatedRecords prometheus.Counter
}

// NewMetrics creates and registers the metrics on registry
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatespeech_predictions_total",
			Help: "Total number of predictions by outcome",
		},
		[]string{"outcome"}, // ok, no_json, provider_error
	)

	m.providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatespeech_provider_errors_total",
			Help: "Total number of failed model invocations",
		},
		[]string{"error_type"}, // timeout, rate_limit, other
	)

	m.predictDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hatespeech_predict_duration_seconds",
			Help:    "Time taken to produce one prediction",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	m.cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hatespeech_prediction_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		},
	)

	m.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hatespeech_evaluations_total",
			Help: "Total number of scoring runs",
		},
		[]string{"status"}, // success, no_valid_pairs, error
	)

	m.validPairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hatespeech_evaluation_valid_pairs",
		Help: "Valid pairs included in the last scoring run",
	})
	m.nullPredictions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hatespeech_evaluation_null_predictions",
		Help: "Null predictions excluded from the last scoring run",
	})
	m.unmatchedPairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hatespeech_evaluation_unmatched_predictions",
		Help: "Predictions without a gold record in the last scoring run",
	})

	m.aggregatedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hatespeech_aggregated_records_total",
		Help: "Total number of consensus records produced",
	})
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.predictionsTotal.Describe(ch)
	m.providerErrorsTotal.Describe(ch)
	m.predictDuration.Describe(ch)
	m.cacheHitsTotal.Describe(ch)
	m.evaluationsTotal.Describe(ch)
	m.validPairs.Describe(ch)
	m.nullPredictions.Describe(ch)
	m.unmatchedPairs.Describe(ch)
	m.aggregatedRecords.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.predictionsTotal.Collect(ch)
	m.providerErrorsTotal.Collect(ch)
	m.predictDuration.Collect(ch)
	m.cacheHitsTotal.Collect(ch)
	m.evaluationsTotal.Collect(ch)
	m.validPairs.Collect(ch)
	m.nullPredictions.Collect(ch)
	m.unmatchedPairs.Collect(ch)
	m.aggregatedRecords.Collect(ch)
}

// RecordPrediction counts one prediction and its latency
func (m *Metrics) RecordPrediction(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(outcome).Inc()
	m.predictDuration.Observe(seconds)
}

// RecordCacheHit counts a prediction served from the cache
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordProviderError counts a failed model invocation
func (m *Metrics) RecordProviderError(errorType string) {
	if m == nil {
		return
	}
	m.providerErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordEvaluation counts a scoring run and exposes its pair accounting
func (m *Metrics) RecordEvaluation(status string, included, null, unmatched int) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(status).Inc()
	m.validPairs.Set(float64(included))
	m.nullPredictions.Set(float64(null))
	m.unmatchedPairs.Set(float64(unmatched))
}

// RecordAggregated counts consensus records
func (m *Metrics) RecordAggregated(n int) {
	if m == nil {
		return
	}
	m.aggregatedRecords.Add(float64(n))
}
