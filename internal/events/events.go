// Package events defines the payloads exchanged over Kafka: the triggers consumed by the
// growth service and the records it publishes through the outbox.
package events

import "time"

// Trigger event types and their topics.
const (
	TypeOnboardingCompleted = "onboarding.completed"
	TypeMeasurementRecorded = "measurement.recorded"
	TypePainReported        = "pain.reported"

	TopicOnboarding   = "onboarding_events"
	TopicMeasurements = "measurement_events"
	TopicPain         = "pain_events"
)

// Published event types and their topics.
const (
	TypePredictionCreated = "prediction.created"
	TypeRoutineGenerated  = "routine.generated"

	TopicPredictions = "height_prediction_events"
	TopicRoutines    = "routine_events"
)

// Subject returns the Schema Registry value subject for a topic.
func Subject(topic string) string {
	return topic + "-value"
}

// OnboardingCompleted is emitted once a user finishes onboarding.
type OnboardingCompleted struct {
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// MeasurementRecorded is emitted when a new height measurement is stored.
type MeasurementRecorded struct {
	UserID        string    `json:"user_id"`
	MeasurementID string    `json:"measurement_id"`
	HeightCm      int       `json:"height_cm"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// PainReported is emitted when a user reports pain.
type PainReported struct {
	UserID      string    `json:"user_id"`
	PainEventID string    `json:"pain_event_id"`
	Area        string    `json:"area"`
	Severity    string    `json:"severity"`
	ReportedAt  time.Time `json:"reported_at"`
}

// PredictionCreated announces a newly persisted prediction.
type PredictionCreated struct {
	PredictionID            string    `json:"prediction_id"`
	UserID                  string    `json:"user_id"`
	PredictedHeightCm       int       `json:"predicted_height_cm"`
	Percentile              int       `json:"percentile"`
	DreamHeightOdds         int       `json:"dream_height_odds"`
	GrowthCompletionPercent int       `json:"growth_completion_percent"`
	Source                  string    `json:"source"`
	Fingerprint             string    `json:"fingerprint"`
	CreatedAt               time.Time `json:"created_at"`
}

// RoutineGenerated announces a newly persisted routine plan.
type RoutineGenerated struct {
	RoutineID   string    `json:"routine_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	PeriodLabel string    `json:"period_label"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	DayCount    int       `json:"day_count"`
	TaskCount   int       `json:"task_count"`
	CreatedAt   time.Time `json:"created_at"`
}
