// Package tracking summarises task completion and pain history for a user.
package tracking

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"example.com/growth/internal/domain"
)

const day = 24 * time.Hour

// Summary is the weekly consistency view shown next to the routine.
type Summary struct {
	CurrentWeekCompletionPercent int `json:"current_week_completion_percent"`
	LastWeekCompletionPercent    int `json:"last_week_completion_percent"`
	ConsistencyDeltaPercent      int `json:"consistency_delta_percent"`
	TotalTasksCompleted          int `json:"total_tasks_completed"`
	TotalPainEvents              int `json:"total_pain_events"`
	ActiveStreakDays             int `json:"active_streak_days"`
	RecoveryDaysThisWeek         int `json:"recovery_days_this_week"`
}

// Inputs gathers everything Summarize needs.
type Inputs struct {
	Now            time.Time
	CurrentWeek    []domain.TaskLogEntry
	LastWeek       []domain.TaskLogEntry
	TotalCompleted int
	TotalPain      int
	CompletedDates []time.Time
	LatestStatus   domain.RoutineStatus
}

// WeekStart returns midnight UTC of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// Summarize computes the summary from already loaded data.
func Summarize(in Inputs) Summary {
	current := CompletionPercent(in.CurrentWeek)
	last := CompletionPercent(in.LastWeek)

	summary := Summary{
		CurrentWeekCompletionPercent: current,
		LastWeekCompletionPercent:    last,
		ConsistencyDeltaPercent:      current - last,
		TotalTasksCompleted:          in.TotalCompleted,
		TotalPainEvents:              in.TotalPain,
		ActiveStreakDays:             Streak(in.Now, in.CompletedDates),
	}
	if in.LatestStatus == domain.RoutineRecovery {
		today := in.Now.UTC().Truncate(day)
		summary.RecoveryDaysThisWeek = int(today.Sub(WeekStart(in.Now))/day) + 1
	}
	return summary
}

// CompletionPercent is the rounded share of completed entries, 0 when there are none.
func CompletionPercent(entries []domain.TaskLogEntry) int {
	if len(entries) == 0 {
		return 0
	}
	completed := 0
	for _, entry := range entries {
		if entry.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(entries)) * 100))
}

// Streak counts consecutive UTC days with a completed task, ending today.
func Streak(now time.Time, completed []time.Time) int {
	seen := make(map[time.Time]bool, len(completed))
	for _, d := range completed {
		seen[d.UTC().Truncate(day)] = true
	}
	streak := 0
	for cursor := now.UTC().Truncate(day); seen[cursor]; cursor = cursor.Add(-day) {
		streak++
	}
	return streak
}

// Service loads tracking data from the stores and summarises it.
type Service struct {
	tracking domain.TrackingStore
	records  domain.RecordStore
	now      func() time.Time
	logger   *log.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(tracking domain.TrackingStore, records domain.RecordStore, opts ...Option) *Service {
	s := &Service{
		tracking: tracking,
		records:  records,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.New(log.Writer(), "[tracking] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary returns the tracking summary for the user as of now.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	now := s.now()
	weekStart := WeekStart(now)

	in := Inputs{Now: now}
	var err error
	if in.CurrentWeek, err = s.tracking.ListTaskLogs(ctx, userID, weekStart, weekStart.AddDate(0, 0, 7)); err != nil {
		return Summary{}, fmt.Errorf("list current week logs: %w", err)
	}
	if in.LastWeek, err = s.tracking.ListTaskLogs(ctx, userID, weekStart.AddDate(0, 0, -7), weekStart); err != nil {
		return Summary{}, fmt.Errorf("list last week logs: %w", err)
	}
	if in.TotalCompleted, err = s.tracking.CountCompletedTasks(ctx, userID); err != nil {
		return Summary{}, fmt.Errorf("count completed tasks: %w", err)
	}
	if in.TotalPain, err = s.tracking.CountPainEvents(ctx, userID); err != nil {
		return Summary{}, fmt.Errorf("count pain events: %w", err)
	}
	if in.CompletedDates, err = s.tracking.ListCompletedDates(ctx, userID); err != nil {
		return Summary{}, fmt.Errorf("list completed dates: %w", err)
	}
	latest, err := s.records.GetLatestRoutine(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("get latest routine: %w", err)
	}
	if latest != nil {
		in.LatestStatus = latest.Status
	}
	return Summarize(in), nil
}
