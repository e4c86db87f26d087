package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/growth/internal/auth"
	"example.com/growth/internal/domain"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/persistence/memory"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
	"example.com/growth/internal/tracking"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "growth.identity"}

type apiFixture struct {
	server *httptest.Server
	store  *memory.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.PutProfile(domain.ProfileSnapshot{
		UserID:            "user-1",
		Gender:            domain.GenderMale,
		Ethnicity:         "hispanic",
		WorkoutCapacity:   "high",
		DateOfBirth:       time.Date(2010, 5, 4, 0, 0, 0, 0, time.UTC),
		MotherHeightCm:    160,
		FatherHeightCm:    176,
		FootSizeCm:        27,
		AverageSleepHours: 8,
		DreamHeightCm:     185,
	})

	var (
		mu    sync.Mutex
		clock = time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	quiet := log.New(io.Discard, "", 0)
	svc := engine.NewService(store, store,
		prediction.NewEngine(nil, prediction.WithLogger(quiet)),
		routine.NewEngine(nil, routine.WithLogger(quiet)),
		engine.WithLocker(store), engine.WithClock(now), engine.WithLogger(quiet),
	)

	mux := http.NewServeMux()
	NewHandler(svc, tracking.NewService(store, store, tracking.WithClock(now))).RegisterRoutes(mux)
	server := httptest.NewServer(auth.NewMiddleware(testAuth).Wrap(mux))
	t.Cleanup(server.Close)
	return &apiFixture{server: server, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, scopes ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if scopes != nil {
		token, err := auth.Sign(testAuth, "user-1", scopes, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func TestCreatePredictionThenReplay(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created PredictionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.False(t, created.Replay)
	require.Equal(t, "fallback", created.Prediction.Source)
	require.NotEmpty(t, created.Prediction.PredictionID)

	resp, body = f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replayed PredictionResponse
	require.NoError(t, json.Unmarshal(body, &replayed))
	require.True(t, replayed.Replay)
	require.Equal(t, created.Prediction.PredictionID, replayed.Prediction.PredictionID)

	resp, body = f.do(t, http.MethodGet, "/v1/predictions/latest", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest PredictionView
	require.NoError(t, json.Unmarshal(body, &latest))
	require.Equal(t, created.Prediction.PredictionID, latest.PredictionID)
}

func TestListPredictionsPaginates(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)
	f.store.AddMeasurement(domain.Measurement{ID: "m1", UserID: "user-1", HeightCm: 150, RecordedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)

	resp, body := f.do(t, http.MethodGet, "/v1/predictions?limit=1", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page ListPredictionsResponse
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	resp, body = f.do(t, http.MethodGet, "/v1/predictions?limit=1&cursor="+page.NextCursor, "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second ListPredictionsResponse
	require.NoError(t, json.Unmarshal(body, &second))
	require.Len(t, second.Items, 1)
	require.NotEqual(t, page.Items[0].PredictionID, second.Items[0].PredictionID)

	resp, _ = f.do(t, http.MethodGet, "/v1/predictions?cursor=!!!!", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutineLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/v1/routines/latest", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)

	resp, body := f.do(t, http.MethodPost, "/v1/routines", `{"mode":"recovery"}`, auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created RoutineResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, "recovery", created.Routine.Status)
	require.Len(t, created.Routine.Days, routine.DayCount)
	require.Equal(t, "2025-03", created.Routine.PeriodLabel)

	resp, body = f.do(t, http.MethodPost, "/v1/routines", `{"mode":"recovery"}`, auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"idempotent_replay":true`)

	resp, body = f.do(t, http.MethodGet, "/v1/routines/latest/days/3", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var day RoutineDayView
	require.NoError(t, json.Unmarshal(body, &day))
	require.Equal(t, 3, day.Day)
	require.Len(t, day.Tasks, routine.TasksPerDay)

	resp, _ = f.do(t, http.MethodGet, "/v1/routines/latest/days/16", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/v1/routines/latest/days/three", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoutineDefaultsToActiveAndRejectsUnknownMode(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)

	resp, body := f.do(t, http.MethodPost, "/v1/routines", "", auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	require.Contains(t, string(body), `"status":"active"`)

	resp, _ = f.do(t, http.MethodPost, "/v1/routines", `{"mode":"rest"}`, auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/routines", `{"mode":`, auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoutineWithoutPredictionIsNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/routines", `{"mode":"active"}`, auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, string(body), `"type":"not_found"`)

	resp, _ = f.do(t, http.MethodGet, "/v1/routines/latest", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPredictionsDefaultsToMaxPageSize(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < engine.MaxPageSize+2; i++ {
		f.store.AddMeasurement(domain.Measurement{
			UserID: "user-1", HeightCm: 140 + i%40, RecordedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		})
		resp, _ := f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthWrite)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/v1/predictions", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page ListPredictionsResponse
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Items, engine.MaxPageSize)
	require.NotEmpty(t, page.NextCursor)
}

func TestTrackingSummary(t *testing.T) {
	f := newAPIFixture(t)
	f.store.AddPainEvent(domain.PainEvent{ID: "p1", UserID: "user-1", Severity: domain.PainMild})

	resp, body := f.do(t, http.MethodGet, "/v1/tracking/summary", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary tracking.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	require.Equal(t, 1, summary.TotalPainEvents)
	require.Zero(t, summary.CurrentWeekCompletionPercent)
}

func TestAuthorization(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/v1/predictions/latest", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/predictions", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/v1/predictions/latest", "", "other:scope")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/v1/predictions/latest", "", auth.ScopeGrowthWrite)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "write scope implies read")

	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/v1/predictions/latest", "/v1/routines/latest", "/v1/tracking/summary"} {
		resp, _ := f.do(t, http.MethodDelete, path, "", auth.ScopeGrowthWrite)
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
	resp, _ := f.do(t, http.MethodGet, "/v1/routines", "", auth.ScopeGrowthRead)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestUnknownProfileIsNotFound(t *testing.T) {
	f := newAPIFixture(t)
	token, err := auth.Sign(testAuth, "stranger", []string{auth.ScopeGrowthWrite}, time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/v1/predictions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
