package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/events"
)

// Record is an event ready to be written to the outbox table.
type Record struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Execer is satisfied by pgx.Tx, *pgxpool.Pool and *pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Insert writes the record using the caller's transaction, so it commits or rolls back with
// the aggregate it describes.
func Insert(ctx context.Context, tx Execer, rec Record) error {
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, stmt, rec.AggregateType, rec.AggregateID, rec.EventType, rec.Topic, rec.SchemaSubject, rec.PartitionKey, []byte(rec.Payload)); err != nil {
		return fmt.Errorf("insert outbox %s: %w", rec.EventType, err)
	}
	return nil
}

// PredictionCreated builds the outbox record announcing a stored prediction.
func PredictionCreated(record domain.PredictionRecord) (Record, error) {
	payload, err := json.Marshal(events.PredictionCreated{
		PredictionID:            record.ID,
		UserID:                  record.UserID,
		PredictedHeightCm:       record.PredictedHeightCm,
		Percentile:              record.Percentile,
		DreamHeightOdds:         record.DreamHeightOdds,
		GrowthCompletionPercent: record.GrowthCompletionPercent,
		Source:                  string(record.Source),
		Fingerprint:             record.Fingerprint,
		CreatedAt:               record.CreatedAt.UTC(),
	})
	if err != nil {
		return Record{}, err
	}
	return newRecord(events.TypePredictionCreated, "prediction", record.ID, record.UserID, payload)
}

// RoutineGenerated builds the outbox record announcing a stored routine plan.
func RoutineGenerated(plan domain.RoutinePlan) (Record, error) {
	tasks := 0
	for _, day := range plan.Days {
		tasks += len(day.Tasks)
	}
	payload, err := json.Marshal(events.RoutineGenerated{
		RoutineID:   plan.ID,
		UserID:      plan.UserID,
		Status:      string(plan.Status),
		PeriodLabel: plan.PeriodLabel,
		Source:      string(plan.Source),
		Fingerprint: plan.Fingerprint,
		DayCount:    len(plan.Days),
		TaskCount:   tasks,
		CreatedAt:   plan.CreatedAt.UTC(),
	})
	if err != nil {
		return Record{}, err
	}
	return newRecord(events.TypeRoutineGenerated, "routine", plan.ID, plan.UserID, payload)
}

// newRecord addresses a payload by its event contract, keyed by user so a user's events stay ordered.
func newRecord(eventType, aggregateType, aggregateID, userID string, payload json.RawMessage) (Record, error) {
	contract, ok := events.ContractFor(eventType)
	if !ok {
		return Record{}, fmt.Errorf("no contract for event_type=%s", eventType)
	}
	return Record{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         contract.Topic,
		SchemaSubject: contract.Subject(),
		PartitionKey:  userID,
		Payload:       payload,
	}, nil
}
