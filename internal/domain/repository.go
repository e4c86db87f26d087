package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProfileNotFound is returned when no profile exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrPredictionNotFound is returned when a prediction is required but none exists.
	ErrPredictionNotFound = errors.New("prediction not found")
	// ErrMeasurementNotFound is returned when a measurement-driven flow finds no measurement.
	ErrMeasurementNotFound = errors.New("measurement not found")
	// ErrRoutineNotFound is returned when the user has no routine yet.
	ErrRoutineNotFound = errors.New("routine not found")
	// ErrRoutineDayNotFound is returned for a day index outside the latest plan.
	ErrRoutineDayNotFound = errors.New("routine day not found")
)

// Cursor is a keyset pagination position over records ordered by (CreatedAt, ID) descending.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ProfileStore exposes the profile and measurement data owned by onboarding.
// Lookups return nil, nil when the row does not exist.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*ProfileSnapshot, error)
	GetLatestMeasurement(ctx context.Context, userID string) (*Measurement, error)
}

// RecordStore persists generated records. InsertRoutine must store the plan, its days and
// its tasks in one transaction.
type RecordStore interface {
	GetLatestPrediction(ctx context.Context, userID string) (*PredictionRecord, error)
	ListPredictions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]PredictionRecord, *Cursor, error)
	InsertPrediction(ctx context.Context, record PredictionRecord) error
	GetLatestRoutine(ctx context.Context, userID string) (*RoutinePlan, error)
	InsertRoutine(ctx context.Context, plan RoutinePlan) error
}

// TrackingStore exposes the task log and pain history used by the tracking summary.
type TrackingStore interface {
	ListTaskLogs(ctx context.Context, userID string, from, to time.Time) ([]TaskLogEntry, error)
	ListCompletedDates(ctx context.Context, userID string) ([]time.Time, error)
	CountCompletedTasks(ctx context.Context, userID string) (int, error)
	CountPainEvents(ctx context.Context, userID string) (int, error)
}

// Locker serialises the read-generate-write sequence per user.
type Locker interface {
	WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error
}
