package postgres

import (
	"context"
	"time"

	"example.com/growth/internal/domain"
)

// ListTaskLogs implements domain.TrackingStore for log dates in [from, to).
func (r *Repository) ListTaskLogs(ctx context.Context, userID string, from, to time.Time) ([]domain.TaskLogEntry, error) {
	const query = `SELECT task_log_id, user_id, routine_id, routine_task_id, day_index, log_date, completed, logged_at
        FROM task_logs WHERE user_id=$1 AND log_date >= $2::date AND log_date < $3::date
        ORDER BY log_date, logged_at`

	rows, err := r.db(ctx).Query(ctx, query, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TaskLogEntry
	for rows.Next() {
		var e domain.TaskLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.RoutineID, &e.RoutineTaskID, &e.DayIndex, &e.Date, &e.Completed, &e.LoggedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListCompletedDates implements domain.TrackingStore: distinct dates with at least one
// completed task, newest first.
func (r *Repository) ListCompletedDates(ctx context.Context, userID string) ([]time.Time, error) {
	const query = `SELECT DISTINCT log_date FROM task_logs WHERE user_id=$1 AND completed ORDER BY log_date DESC`

	rows, err := r.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d.UTC())
	}
	return dates, rows.Err()
}

// CountCompletedTasks implements domain.TrackingStore.
func (r *Repository) CountCompletedTasks(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM task_logs WHERE user_id=$1 AND completed`, userID).Scan(&n)
	return n, err
}

// CountPainEvents implements domain.TrackingStore.
func (r *Repository) CountPainEvents(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pain_events WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}
