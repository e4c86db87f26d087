package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a dead-letter entry handled by the DLQManager.
const (
	dlqRequeued    = "requeued"
	dlqRescheduled = "rescheduled"
	dlqQuarantined = "quarantined"
)

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events delivered to Kafka, by event type.",
	}, []string{"event_type"})

	deadLetteredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Outbox events moved to the dead-letter table, by event type.",
	}, []string{"event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "growth_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, delivering and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-letter entries handled, by event type and outcome (requeued, rescheduled, quarantined).",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "growth_service",
		Subsystem: "dlq",
		Name:      "queued_entries",
		Help:      "Dead-letter entries still waiting for replay.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, deadLetteredCounter, batchDuration, dlqEntriesCounter, dlqBacklogGauge)
}

func recordPublished(messages []Message) {
	for _, msg := range messages {
		publishedCounter.WithLabelValues(msg.EventType).Inc()
	}
}

func recordDeadLettered(msg Message) {
	deadLetteredCounter.WithLabelValues(msg.EventType).Inc()
}

func recordDLQOutcome(eventType, outcome string) {
	dlqEntriesCounter.WithLabelValues(eventType, outcome).Inc()
}
