// Package engine orchestrates prediction and routine generation for a user: it reads the
// profile, fingerprints the generation input, consults the idempotency gate, runs the
// generation pipeline and persists the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/fingerprint"
	"example.com/growth/internal/idempotency"
	"example.com/growth/internal/observability"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
)

// MaxPageSize bounds history pages.
const MaxPageSize = 100

// ErrInvalidMode is returned for a routine mode other than active or recovery.
var ErrInvalidMode = errors.New("invalid routine mode")

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLocker serialises each user's read-generate-write sequence.
func WithLocker(locker domain.Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithClock overrides the time source used for CreatedAt and period labels.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service is the entry point for generation triggers and the read side.
type Service struct {
	profiles  domain.ProfileStore
	records   domain.RecordStore
	predictor *prediction.Engine
	planner   *routine.Engine
	locker    domain.Locker
	now       func() time.Time
	newID     func() string
	logger    *log.Logger
}

// NewService constructs a Service.
func NewService(profiles domain.ProfileStore, records domain.RecordStore, predictor *prediction.Engine, planner *routine.Engine, opts ...Option) *Service {
	s := &Service{
		profiles:  profiles,
		records:   records,
		predictor: predictor,
		planner:   planner,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		logger:    log.New(log.Writer(), "[engine] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict generates a prediction for the user unless the latest one already reflects the
// current profile and measurement. The boolean is true when the stored record was reused.
func (s *Service) Predict(ctx context.Context, userID string) (*domain.PredictionRecord, bool, error) {
	var (
		result *domain.PredictionRecord
		replay bool
	)
	err := s.withLock(ctx, userID, func(ctx context.Context) error {
		profile, err := s.profile(ctx, userID)
		if err != nil {
			return err
		}
		latest, err := s.profiles.GetLatestMeasurement(ctx, userID)
		if err != nil {
			return fmt.Errorf("get latest measurement: %w", err)
		}
		fp, err := fingerprint.Of(prediction.NewInput(*profile, latest))
		if err != nil {
			return err
		}
		previous, err := s.records.GetLatestPrediction(ctx, userID)
		if err != nil {
			return fmt.Errorf("get latest prediction: %w", err)
		}

		var marker *idempotency.Marker
		if previous != nil {
			marker = &idempotency.Marker{Fingerprint: previous.Fingerprint, Mode: idempotency.ModePrediction}
		}
		decision := idempotency.Check(fp, idempotency.ModePrediction, marker)
		observability.RecordGateDecision("prediction", decision.String())
		if decision == idempotency.Skip {
			result, replay = previous, true
			return nil
		}

		record, err := s.predictor.Predict(ctx, profile, latest, previous)
		if err != nil {
			return err
		}
		record.ID = s.newID()
		record.Fingerprint = fp
		record.CreatedAt = s.now()
		if err := s.records.InsertPrediction(ctx, record); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
		observability.RecordPredictionPersisted(record.CreatedAt)
		result = &record
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, replay, nil
}

// GenerateRoutine generates a plan in the given mode unless the latest plan already reflects
// the current profile, prediction, mode and catalog. The boolean is true on reuse.
// A user without a prediction gets domain.ErrPredictionNotFound.
func (s *Service) GenerateRoutine(ctx context.Context, userID string, mode domain.RoutineStatus) (*domain.RoutinePlan, bool, error) {
	if !mode.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	var (
		result *domain.RoutinePlan
		replay bool
	)
	err := s.withLock(ctx, userID, func(ctx context.Context) error {
		profile, err := s.profile(ctx, userID)
		if err != nil {
			return err
		}
		latestPrediction, err := s.records.GetLatestPrediction(ctx, userID)
		if err != nil {
			return fmt.Errorf("get latest prediction: %w", err)
		}
		if latestPrediction == nil {
			return domain.ErrPredictionNotFound
		}
		in := routine.NewInput(*profile, latestPrediction, mode, s.planner.Catalog().Version())
		fp, err := fingerprint.Of(in)
		if err != nil {
			return err
		}
		previous, err := s.records.GetLatestRoutine(ctx, userID)
		if err != nil {
			return fmt.Errorf("get latest routine: %w", err)
		}

		var marker *idempotency.Marker
		if previous != nil {
			marker = &idempotency.Marker{Fingerprint: previous.Fingerprint, Mode: string(previous.Status)}
		}
		decision := idempotency.Check(fp, string(mode), marker)
		observability.RecordGateDecision("routine", decision.String())
		if decision == idempotency.Skip {
			result, replay = previous, true
			return nil
		}

		days, source := s.planner.Generate(ctx, in)
		now := s.now()
		plan := domain.RoutinePlan{
			ID:          s.newID(),
			UserID:      userID,
			Status:      mode,
			PeriodLabel: domain.PeriodLabel(now),
			Source:      source,
			Fingerprint: fp,
			CreatedAt:   now,
			UpdatedAt:   now,
			Days:        days,
		}
		for i := range plan.Days {
			plan.Days[i].ID = s.newID()
			for j := range plan.Days[i].Tasks {
				plan.Days[i].Tasks[j].ID = s.newID()
			}
		}
		if err := s.records.InsertRoutine(ctx, plan); err != nil {
			return fmt.Errorf("insert routine: %w", err)
		}
		observability.RecordRoutinePersisted(plan.CreatedAt)
		result = &plan
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, replay, nil
}

// OnboardingCompleted predicts and then builds the first active routine.
func (s *Service) OnboardingCompleted(ctx context.Context, userID string) error {
	record, replay, err := s.Predict(ctx, userID)
	if err != nil {
		return err
	}
	plan, planReplay, err := s.GenerateRoutine(ctx, userID, domain.RoutineActive)
	if err != nil {
		return err
	}
	s.logger.Printf("onboarding processed (user=%s, prediction=%s replay=%t, routine=%s replay=%t)", userID, record.ID, replay, plan.ID, planReplay)
	return nil
}

// MeasurementRecorded refreshes the prediction after a new height measurement.
func (s *Service) MeasurementRecorded(ctx context.Context, userID string) error {
	latest, err := s.profiles.GetLatestMeasurement(ctx, userID)
	if err != nil {
		return fmt.Errorf("get latest measurement: %w", err)
	}
	if latest == nil {
		return domain.ErrMeasurementNotFound
	}
	record, replay, err := s.Predict(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Printf("measurement processed (user=%s, height=%d, prediction=%s replay=%t)", userID, latest.HeightCm, record.ID, replay)
	return nil
}

// PainReported switches the user to a recovery routine.
func (s *Service) PainReported(ctx context.Context, userID string) error {
	plan, replay, err := s.GenerateRoutine(ctx, userID, domain.RoutineRecovery)
	if err != nil {
		return err
	}
	s.logger.Printf("pain report processed (user=%s, routine=%s replay=%t)", userID, plan.ID, replay)
	return nil
}

// LatestPrediction returns the newest prediction.
func (s *Service) LatestPrediction(ctx context.Context, userID string) (*domain.PredictionRecord, error) {
	record, err := s.records.GetLatestPrediction(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrPredictionNotFound
	}
	return record, nil
}

// ListPredictions returns one page of the prediction history, newest first, and the cursor
// of the next page when there may be one.
func (s *Service) ListPredictions(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.PredictionRecord, *domain.Cursor, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.records.ListPredictions(ctx, userID, cursor, limit)
}

// LatestRoutine returns the newest plan.
func (s *Service) LatestRoutine(ctx context.Context, userID string) (*domain.RoutinePlan, error) {
	plan, err := s.records.GetLatestRoutine(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrRoutineNotFound
	}
	return plan, nil
}

// RoutineDay returns one day of the newest plan.
func (s *Service) RoutineDay(ctx context.Context, userID string, dayIndex int) (*domain.RoutineDay, error) {
	plan, err := s.LatestRoutine(ctx, userID)
	if err != nil {
		return nil, err
	}
	day, ok := plan.Day(dayIndex)
	if !ok {
		return nil, domain.ErrRoutineDayNotFound
	}
	return &day, nil
}

func (s *Service) profile(ctx context.Context, userID string) (*domain.ProfileSnapshot, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Service) withLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithUserLock(ctx, userID, fn)
}
