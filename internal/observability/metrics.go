// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	predictionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "growth_service",
		Subsystem: "persistence",
		Name:      "last_prediction_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent prediction persisted to Postgres.",
	})
	routinePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "growth_service",
		Subsystem: "persistence",
		Name:      "last_routine_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent routine plan persisted to Postgres.",
	})

	generationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "generation",
		Name:      "outcomes_total",
		Help:      "External generation attempts by artifact kind and outcome (validated, rejected, unavailable).",
	}, []string{"kind", "outcome"})

	gateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "generation",
		Name:      "gate_decisions_total",
		Help:      "Idempotency gate decisions by artifact kind.",
	}, []string{"kind", "decision"})

	inferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "growth_service",
		Subsystem: "inference",
		Name:      "call_duration_seconds",
		Help:      "Latency of inference gateway calls grouped by result.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(predictionPersistGauge, routinePersistGauge, generationOutcomes, gateDecisions, inferenceDuration)
}

// RecordPredictionPersisted updates the prediction watermark gauge.
func RecordPredictionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	predictionPersistGauge.Set(float64(ts.Unix()))
}

// RecordRoutinePersisted updates the routine watermark gauge.
func RecordRoutinePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	routinePersistGauge.Set(float64(ts.Unix()))
}

// RecordGenerationOutcome counts one external generation attempt.
func RecordGenerationOutcome(kind, outcome string) {
	generationOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordGateDecision counts one idempotency gate decision.
func RecordGateDecision(kind, decision string) {
	gateDecisions.WithLabelValues(kind, decision).Inc()
}

// ObserveInferenceCall records the duration of a single gateway call.
func ObserveInferenceCall(result string, elapsed time.Duration) {
	inferenceDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}
