//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/inference"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	return startPostgresWithMaxConns(t, 0)
}

// startPostgresWithMaxConns caps the pool when maxConns is positive.
func startPostgresWithMaxConns(t *testing.T, maxConns int32) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("growth"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func seedProfile(t *testing.T, repo *Repository, userID string) {
	t.Helper()
	require.NoError(t, repo.UpsertProfile(context.Background(), domain.ProfileSnapshot{
		UserID:            userID,
		Gender:            domain.GenderMale,
		Ethnicity:         "asian",
		WorkoutCapacity:   "moderate",
		DateOfBirth:       time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC),
		MotherHeightCm:    162,
		FatherHeightCm:    178,
		FootSizeCm:        26,
		AverageSleepHours: 7.5,
		DreamHeightCm:     183,
	}))
}

func TestGenerationPersistsRecordsWithOutboxEvents(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewRepository(pool)
	seedProfile(t, repo, "user-1")

	svc := engine.NewService(repo, repo,
		prediction.NewEngine(inference.Noop{}),
		routine.NewEngine(inference.Noop{}),
		engine.WithLocker(repo),
	)

	rec, replay, err := svc.Predict(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, replay)

	stored, err := repo.GetLatestPrediction(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, rec.ID, stored.ID)
	require.Equal(t, rec.Fingerprint, stored.Fingerprint)
	require.Equal(t, domain.SourceFallback, stored.Source)

	_, replay, err = svc.Predict(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, replay)

	plan, _, err := svc.GenerateRoutine(ctx, "user-1", domain.RoutineActive)
	require.NoError(t, err)

	loaded, err := repo.GetLatestRoutine(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, plan.ID, loaded.ID)
	require.Len(t, loaded.Days, routine.DayCount)
	for i, day := range loaded.Days {
		require.Equal(t, i+1, day.DayIndex)
		require.Len(t, day.Tasks, routine.TasksPerDay)
		require.Equal(t, plan.Days[i].Tasks, day.Tasks)
	}

	var events []string
	rows, err := pool.Query(ctx, `SELECT event_type FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	for rows.Next() {
		var eventType string
		require.NoError(t, rows.Scan(&eventType))
		events = append(events, eventType)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"prediction.created", "routine.generated"}, events)
}

func TestInsertRoutineIsAtomic(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewRepository(pool)
	seedProfile(t, repo, "user-1")

	days := routine.DefaultCatalog().Fallback(domain.RoutineActive)
	for i := range days {
		days[i].ID = uuid.NewString()
		for j := range days[i].Tasks {
			days[i].Tasks[j].ID = uuid.NewString()
		}
	}
	// A repeated task name on one day violates the unique constraint mid-batch.
	days[3].Tasks[1].Name = days[3].Tasks[2].Name

	now := time.Now().UTC()
	err := repo.InsertRoutine(ctx, domain.RoutinePlan{
		ID: uuid.NewString(), UserID: "user-1", Status: domain.RoutineActive, PeriodLabel: domain.PeriodLabel(now),
		Source: domain.SourceFallback, Fingerprint: "fp", CreatedAt: now, UpdatedAt: now, Days: days,
	})
	require.Error(t, err)

	plan, err := repo.GetLatestRoutine(ctx, "user-1")
	require.NoError(t, err)
	require.Nil(t, plan)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&outboxRows))
	require.Zero(t, outboxRows)
}

func TestListPredictionsPaginates(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewRepository(pool)
	seedProfile(t, repo, "user-1")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.InsertPrediction(ctx, domain.PredictionRecord{
			ID: uuid.NewString(), UserID: "user-1", PredictedHeightCm: 170 + i, Percentile: 50,
			DreamHeightOdds: 20, GrowthCompletionPercent: 80, Source: domain.SourceFallback,
			Fingerprint: "fp", CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	first, next, err := repo.ListPredictions(ctx, "user-1", nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 174, first[0].PredictedHeightCm)
	require.NotNil(t, next)

	second, next, err := repo.ListPredictions(ctx, "user-1", next, 2)
	require.NoError(t, err)
	require.Equal(t, 172, second[0].PredictedHeightCm)

	last, next, err := repo.ListPredictions(ctx, "user-1", next, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Nil(t, next)
}

func TestTrackingQueries(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewRepository(pool)
	seedProfile(t, repo, "user-1")

	svc := engine.NewService(repo, repo, prediction.NewEngine(nil), routine.NewEngine(nil))
	plan, _, err := svc.GenerateRoutine(ctx, "user-1", domain.RoutineActive)
	require.NoError(t, err)

	task := plan.Days[0].Tasks[0]
	insert := `INSERT INTO task_logs (task_log_id, user_id, routine_id, routine_task_id, day_index, log_date, completed)
        VALUES ($1,$2,$3,$4,1,$5,$6)`
	for _, row := range []struct {
		date      string
		completed bool
	}{{"2025-03-10", true}, {"2025-03-10", true}, {"2025-03-11", false}, {"2025-03-12", true}} {
		_, err := pool.Exec(ctx, insert, uuid.NewString(), "user-1", plan.ID, task.ID, row.date, row.completed)
		require.NoError(t, err)
	}
	_, err = pool.Exec(ctx, `INSERT INTO pain_events (pain_event_id, user_id, area, severity) VALUES ($1,'user-1','knee','mild')`, uuid.NewString())
	require.NoError(t, err)

	logs, err := repo.ListTaskLogs(ctx, "user-1",
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, logs, 3)

	dates, err := repo.ListCompletedDates(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.Equal(t, 12, dates[0].Day())

	completed, err := repo.CountCompletedTasks(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, completed)

	pain, err := repo.CountPainEvents(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, pain)
}

func TestWithUserLockSerialises(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(startPostgres(t))

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithUserLock(ctx, "user-1", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

func TestLockedGenerationsDoNotExhaustPool(t *testing.T) {
	const maxConns = 2
	pool := startPostgresWithMaxConns(t, maxConns)
	repo := NewRepository(pool)

	slow := inference.Func(func(ctx context.Context, _, _ string) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "", inference.ErrDisabled
	})
	svc := engine.NewService(repo, repo,
		prediction.NewEngine(slow),
		routine.NewEngine(slow),
		engine.WithLocker(repo),
	)

	users := make([]string, maxConns+1)
	for i := range users {
		users[i] = uuid.NewString()
		seedProfile(t, repo, users[i])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errs := make(chan error, len(users))
	for _, userID := range users {
		go func(userID string) {
			if _, _, err := svc.Predict(ctx, userID); err != nil {
				errs <- err
				return
			}
			_, _, err := svc.GenerateRoutine(ctx, userID, domain.RoutineActive)
			errs <- err
		}(userID)
	}
	for range users {
		require.NoError(t, <-errs)
	}

	for _, userID := range users {
		plan, err := repo.GetLatestRoutine(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, plan)
	}
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
