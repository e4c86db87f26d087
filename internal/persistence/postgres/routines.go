package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/outbox"
)

// InsertRoutine implements domain.RecordStore. The plan, its days, its tasks and the
// routine.generated outbox event commit together or not at all.
func (r *Repository) InsertRoutine(ctx context.Context, plan domain.RoutinePlan) error {
	event, err := outbox.RoutineGenerated(plan)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.db(ctx), func(tx pgx.Tx) error {
		const insertRoutine = `INSERT INTO routines (routine_id, user_id, status, period_label, source, input_hash, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
		if _, err := tx.Exec(ctx, insertRoutine, plan.ID, plan.UserID, plan.Status, plan.PeriodLabel, plan.Source,
			plan.Fingerprint, plan.CreatedAt, plan.UpdatedAt); err != nil {
			return fmt.Errorf("insert routines: %w", err)
		}

		batch := &pgx.Batch{}
		for _, day := range plan.Days {
			batch.Queue(`INSERT INTO routine_days (routine_day_id, routine_id, day_index) VALUES ($1,$2,$3)`,
				day.ID, plan.ID, day.DayIndex)
			for position, task := range day.Tasks {
				batch.Queue(`INSERT INTO routine_tasks (routine_task_id, routine_day_id, position, name, category, task_type, reps, duration_minutes)
                    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
					task.ID, day.ID, position, task.Name, task.Category, task.TaskType, task.Reps, task.DurationMinutes)
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert routine days: %w", err)
		}

		return outbox.Insert(ctx, tx, event)
	})
}

// GetLatestRoutine implements domain.RecordStore. Days come back ordered by index and tasks
// in the order they were generated.
func (r *Repository) GetLatestRoutine(ctx context.Context, userID string) (*domain.RoutinePlan, error) {
	const planQuery = `SELECT routine_id, user_id, status, period_label, source, input_hash, created_at, updated_at
        FROM routines WHERE user_id=$1 ORDER BY created_at DESC, routine_id DESC LIMIT 1`

	var plan domain.RoutinePlan
	err := r.db(ctx).QueryRow(ctx, planQuery, userID).Scan(&plan.ID, &plan.UserID, &plan.Status, &plan.PeriodLabel,
		&plan.Source, &plan.Fingerprint, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	const taskQuery = `SELECT d.routine_day_id, d.day_index, t.routine_task_id, t.name, t.category, t.task_type, t.reps, t.duration_minutes
        FROM routine_days d
        JOIN routine_tasks t ON t.routine_day_id = d.routine_day_id
        WHERE d.routine_id=$1
        ORDER BY d.day_index, t.position`

	rows, err := r.db(ctx).Query(ctx, taskQuery, plan.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dayID    string
			dayIndex int
			task     domain.RoutineTask
		)
		if err := rows.Scan(&dayID, &dayIndex, &task.ID, &task.Name, &task.Category, &task.TaskType, &task.Reps, &task.DurationMinutes); err != nil {
			return nil, err
		}
		if n := len(plan.Days); n == 0 || plan.Days[n-1].ID != dayID {
			plan.Days = append(plan.Days, domain.RoutineDay{ID: dayID, DayIndex: dayIndex})
		}
		last := &plan.Days[len(plan.Days)-1]
		last.Tasks = append(last.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &plan, nil
}
