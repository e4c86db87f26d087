package consumer

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded for each consumed trigger event.
const (
	outcomeHandled = "handled"
	outcomeFailed  = "failed"
	outcomeIgnored = "ignored"
)

// untyped labels events that decode cleanly but drive no trigger.
const untyped = "none"

var (
	triggerCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "consumer",
		Name:      "triggers_total",
		Help:      "Consumed trigger events by trigger (onboarding, measurement, pain) and outcome.",
	}, []string{"trigger", "outcome"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Messages committed without handling because they could not be decoded, per topic.",
	}, []string{"topic"})

	lastTriggerGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "growth_service",
		Subsystem: "consumer",
		Name:      "last_trigger_timestamp_seconds",
		Help:      "Kafka timestamp of the most recently handled event per trigger.",
	}, []string{"trigger"})
)

func init() {
	prometheus.MustRegister(triggerCounter, decodeErrorCounter, lastTriggerGauge)
}

func triggerLabel(msg Message) string {
	if msg.Trigger == nil {
		return untyped
	}
	return string(msg.Trigger.Kind)
}

func recordOutcome(msg Message, outcome string) {
	label := triggerLabel(msg)
	triggerCounter.WithLabelValues(label, outcome).Inc()
	if outcome == outcomeHandled && !msg.Timestamp.IsZero() {
		lastTriggerGauge.WithLabelValues(label).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
