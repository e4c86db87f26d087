// Package memory provides an in-process implementation of the growth stores for local
// development, the CLI and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/growth/internal/domain"
)

// Store keeps profiles, measurements and generated records in memory.
type Store struct {
	mu           sync.RWMutex
	profiles     map[string]domain.ProfileSnapshot
	measurements map[string][]domain.Measurement
	predictions  map[string][]domain.PredictionRecord
	routines     map[string][]domain.RoutinePlan
	pain         map[string][]domain.PainEvent
	taskLogs     map[string][]domain.TaskLogEntry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		profiles:     make(map[string]domain.ProfileSnapshot),
		measurements: make(map[string][]domain.Measurement),
		predictions:  make(map[string][]domain.PredictionRecord),
		routines:     make(map[string][]domain.RoutinePlan),
		pain:         make(map[string][]domain.PainEvent),
		taskLogs:     make(map[string][]domain.TaskLogEntry),
		locks:        make(map[string]*sync.Mutex),
	}
}

// PutProfile creates or replaces the profile of profile.UserID.
func (s *Store) PutProfile(profile domain.ProfileSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

// AddMeasurement appends a height measurement.
func (s *Store) AddMeasurement(m domain.Measurement) domain.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	s.measurements[m.UserID] = append(s.measurements[m.UserID], m)
	return m
}

// AddPainEvent appends a pain report.
func (s *Store) AddPainEvent(e domain.PainEvent) domain.PainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.pain[e.UserID] = append(s.pain[e.UserID], e)
	return e
}

// AddTaskLog appends a task completion entry.
func (s *Store) AddTaskLog(entry domain.TaskLogEntry) domain.TaskLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}
	s.taskLogs[entry.UserID] = append(s.taskLogs[entry.UserID], entry)
	return entry
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(_ context.Context, userID string) (*domain.ProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// GetLatestMeasurement implements domain.ProfileStore.
func (s *Store) GetLatestMeasurement(_ context.Context, userID string) (*domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Measurement
	for i := range s.measurements[userID] {
		m := s.measurements[userID][i]
		if latest == nil || !m.RecordedAt.Before(latest.RecordedAt) {
			latest = &m
		}
	}
	return latest, nil
}

// GetLatestPrediction implements domain.RecordStore.
func (s *Store) GetLatestPrediction(_ context.Context, userID string) (*domain.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.PredictionRecord
	for i := range s.predictions[userID] {
		record := s.predictions[userID][i]
		if latest == nil || !record.CreatedAt.Before(latest.CreatedAt) {
			latest = &record
		}
	}
	return latest, nil
}

// ListPredictions implements domain.RecordStore, newest first.
func (s *Store) ListPredictions(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.PredictionRecord, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := append([]domain.PredictionRecord(nil), s.predictions[userID]...)
	sort.SliceStable(all, func(i, j int) bool { return newer(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })

	out := make([]domain.PredictionRecord, 0, limit)
	for _, record := range all {
		if cursor != nil && !newer(cursor.CreatedAt, cursor.ID, record.CreatedAt, record.ID) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, record)
	}

	var next *domain.Cursor
	if limit > 0 && len(out) == limit {
		last := out[len(out)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return out, next, nil
}

// newer orders by (createdAt, id) descending.
func newer(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

// InsertPrediction implements domain.RecordStore.
func (s *Store) InsertPrediction(_ context.Context, record domain.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[record.UserID] = append(s.predictions[record.UserID], record)
	return nil
}

// GetLatestRoutine implements domain.RecordStore.
func (s *Store) GetLatestRoutine(_ context.Context, userID string) (*domain.RoutinePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.RoutinePlan
	for i := range s.routines[userID] {
		plan := s.routines[userID][i]
		if latest == nil || !plan.CreatedAt.Before(latest.CreatedAt) {
			latest = &plan
		}
	}
	if latest == nil {
		return nil, nil
	}
	plan := clonePlan(*latest)
	return &plan, nil
}

// InsertRoutine implements domain.RecordStore. The plan is copied so later changes by the
// caller are not visible to readers.
func (s *Store) InsertRoutine(_ context.Context, plan domain.RoutinePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routines[plan.UserID] = append(s.routines[plan.UserID], clonePlan(plan))
	return nil
}

// ListTaskLogs implements domain.TrackingStore. Entries are returned when from <= Date < to.
func (s *Store) ListTaskLogs(_ context.Context, userID string, from, to time.Time) ([]domain.TaskLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TaskLogEntry
	for _, entry := range s.taskLogs[userID] {
		if !entry.Date.Before(from) && entry.Date.Before(to) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListCompletedDates implements domain.TrackingStore: distinct UTC dates with at least one
// completed task, newest first.
func (s *Store) ListCompletedDates(_ context.Context, userID string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, entry := range s.taskLogs[userID] {
		if !entry.Completed {
			continue
		}
		day := entry.Date.UTC().Truncate(24 * time.Hour)
		if !seen[day] {
			seen[day] = true
			out = append(out, day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

// CountCompletedTasks implements domain.TrackingStore.
func (s *Store) CountCompletedTasks(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.taskLogs[userID] {
		if entry.Completed {
			count++
		}
	}
	return count, nil
}

// CountPainEvents implements domain.TrackingStore.
func (s *Store) CountPainEvents(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pain[userID]), nil
}

// WithUserLock implements domain.Locker with one mutex per user.
func (s *Store) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	s.locksMu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func clonePlan(plan domain.RoutinePlan) domain.RoutinePlan {
	days := make([]domain.RoutineDay, len(plan.Days))
	for i, day := range plan.Days {
		tasks := make([]domain.RoutineTask, len(day.Tasks))
		for j, task := range day.Tasks {
			task.Reps = cloneInt(task.Reps)
			task.DurationMinutes = cloneInt(task.DurationMinutes)
			tasks[j] = task
		}
		day.Tasks = tasks
		days[i] = day
	}
	plan.Days = days
	return plan
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
