// Package postgres implements the growth stores on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/outbox"
)

// Repository provides Postgres-backed persistence for profiles, generated records and their
// outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProfile implements domain.ProfileStore.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.ProfileSnapshot, error) {
	const query = `SELECT user_id, gender, ethnicity, workout_capacity, date_of_birth, mother_height_cm, father_height_cm,
        foot_size_cm, average_sleep_hours, dream_height_cm
        FROM user_profiles WHERE user_id=$1`

	var p domain.ProfileSnapshot
	err := r.db(ctx).QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Gender, &p.Ethnicity, &p.WorkoutCapacity, &p.DateOfBirth,
		&p.MotherHeightCm, &p.FatherHeightCm, &p.FootSizeCm, &p.AverageSleepHours, &p.DreamHeightCm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetLatestMeasurement implements domain.ProfileStore.
func (r *Repository) GetLatestMeasurement(ctx context.Context, userID string) (*domain.Measurement, error) {
	const query = `SELECT height_log_id, user_id, height_cm, recorded_at
        FROM height_logs WHERE user_id=$1 ORDER BY recorded_at DESC, height_log_id DESC LIMIT 1`

	var m domain.Measurement
	if err := r.db(ctx).QueryRow(ctx, query, userID).Scan(&m.ID, &m.UserID, &m.HeightCm, &m.RecordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// UpsertProfile writes the user and profile rows. Onboarding owns these tables; the method
// exists for seeding and tests.
func (r *Repository) UpsertProfile(ctx context.Context, p domain.ProfileSnapshot) error {
	return pgx.BeginFunc(ctx, r.db(ctx), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, p.UserID); err != nil {
			return err
		}
		const stmt = `INSERT INTO user_profiles (user_id, gender, ethnicity, workout_capacity, date_of_birth, mother_height_cm,
            father_height_cm, foot_size_cm, average_sleep_hours, dream_height_cm)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
            ON CONFLICT (user_id) DO UPDATE SET gender=EXCLUDED.gender, ethnicity=EXCLUDED.ethnicity,
                workout_capacity=EXCLUDED.workout_capacity, date_of_birth=EXCLUDED.date_of_birth,
                mother_height_cm=EXCLUDED.mother_height_cm, father_height_cm=EXCLUDED.father_height_cm,
                foot_size_cm=EXCLUDED.foot_size_cm, average_sleep_hours=EXCLUDED.average_sleep_hours,
                dream_height_cm=EXCLUDED.dream_height_cm, updated_at=NOW()`
		_, err := tx.Exec(ctx, stmt, p.UserID, p.Gender, p.Ethnicity, p.WorkoutCapacity, p.DateOfBirth, p.MotherHeightCm,
			p.FatherHeightCm, p.FootSizeCm, p.AverageSleepHours, p.DreamHeightCm)
		return err
	})
}

// InsertMeasurement writes a height log. Like UpsertProfile it serves seeding and tests.
func (r *Repository) InsertMeasurement(ctx context.Context, m domain.Measurement) error {
	const stmt = `INSERT INTO height_logs (height_log_id, user_id, height_cm, recorded_at) VALUES ($1,$2,$3,$4)`
	_, err := r.db(ctx).Exec(ctx, stmt, m.ID, m.UserID, m.HeightCm, m.RecordedAt)
	return err
}

const predictionColumns = `prediction_id, user_id, predicted_height_cm, percentile, dream_height_odds,
        growth_completion_percent, source, input_hash, created_at`

func scanPrediction(row pgx.Row) (domain.PredictionRecord, error) {
	var rec domain.PredictionRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.PredictedHeightCm, &rec.Percentile, &rec.DreamHeightOdds,
		&rec.GrowthCompletionPercent, &rec.Source, &rec.Fingerprint, &rec.CreatedAt)
	return rec, err
}

// GetLatestPrediction implements domain.RecordStore.
func (r *Repository) GetLatestPrediction(ctx context.Context, userID string) (*domain.PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + ` FROM height_predictions
        WHERE user_id=$1 ORDER BY created_at DESC, prediction_id DESC LIMIT 1`

	rec, err := scanPrediction(r.db(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListPredictions implements domain.RecordStore with keyset pagination.
func (r *Repository) ListPredictions(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.PredictionRecord, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT ` + predictionColumns + ` FROM height_predictions WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (created_at, prediction_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, prediction_id DESC LIMIT $2`

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.PredictionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// InsertPrediction persists the record and its prediction.created outbox event inside a
// single transaction.
func (r *Repository) InsertPrediction(ctx context.Context, record domain.PredictionRecord) error {
	event, err := outbox.PredictionCreated(record)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.db(ctx), func(tx pgx.Tx) error {
		const stmt = `INSERT INTO height_predictions (` + predictionColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err := tx.Exec(ctx, stmt, record.ID, record.UserID, record.PredictedHeightCm, record.Percentile,
			record.DreamHeightOdds, record.GrowthCompletionPercent, record.Source, record.Fingerprint, record.CreatedAt); err != nil {
			return fmt.Errorf("insert height_predictions: %w", err)
		}
		return outbox.Insert(ctx, tx, event)
	})
}
