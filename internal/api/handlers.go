// Package api exposes HTTP handlers for the growth service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/growth/internal/auth"
	"example.com/growth/internal/domain"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/persistence"
	"example.com/growth/internal/tracking"
)

const dayRoutePrefix = "/v1/routines/latest/days/"

// Handler coordinates HTTP requests with the generation engine and tracking summary.
type Handler struct {
	engine   *engine.Service
	tracking *tracking.Service
}

// NewHandler builds a Handler.
func NewHandler(generator *engine.Service, summaries *tracking.Service) *Handler {
	return &Handler{engine: generator, tracking: summaries}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/predictions", h.predictions)
	mux.HandleFunc("/v1/predictions/latest", h.latestPrediction)
	mux.HandleFunc("/v1/routines", h.routines)
	mux.HandleFunc("/v1/routines/latest", h.latestRoutine)
	mux.HandleFunc(dayRoutePrefix, h.routineDay)
	mux.HandleFunc("/v1/tracking/summary", h.summary)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) predictions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createPrediction(w, r)
	case http.MethodGet:
		h.listPredictions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) routines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.createRoutine(w, r)
}

func (h *Handler) createPrediction(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeGrowthWrite)
	if !ok {
		return
	}

	record, replay, err := h.engine.Predict(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, createdStatus(replay), PredictionResponse{Prediction: toPredictionView(*record), Replay: replay})
}

func (h *Handler) latestPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeGrowthRead)
	if !ok {
		return
	}

	record, err := h.engine.LatestPrediction(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPredictionView(*record))
}

func (h *Handler) listPredictions(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeGrowthRead)
	if !ok {
		return
	}

	limit := engine.MaxPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.engine.ListPredictions(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]PredictionView, 0, len(records))
	for _, rec := range records {
		items = append(items, toPredictionView(rec))
	}
	writeJSON(w, http.StatusOK, ListPredictionsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) createRoutine(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeGrowthWrite)
	if !ok {
		return
	}

	var req CreateRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	mode := domain.RoutineStatus(strings.ToLower(strings.TrimSpace(req.Mode)))
	if mode == "" {
		mode = domain.RoutineActive
	}

	plan, replay, err := h.engine.GenerateRoutine(r.Context(), claims.Subject, mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, createdStatus(replay), RoutineResponse{Routine: toRoutineView(*plan), Replay: replay})
}

func (h *Handler) latestRoutine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeGrowthRead)
	if !ok {
		return
	}

	plan, err := h.engine.LatestRoutine(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineView(*plan))
}

func (h *Handler) routineDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeGrowthRead)
	if !ok {
		return
	}

	index, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, dayRoutePrefix))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "day must be an integer")
		return
	}

	day, err := h.engine.RoutineDay(r.Context(), claims.Subject, index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDayView(*day))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeGrowthRead)
	if !ok {
		return
	}

	summary, err := h.tracking.Summary(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// authorize requires claims carrying the scope. growth:write implies growth:read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) && !claims.HasScope(auth.ScopeGrowthWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func createdStatus(replay bool) int {
	if replay {
		return http.StatusOK
	}
	return http.StatusCreated
}

// CreateRoutineRequest is the payload for POST /v1/routines. Mode defaults to active.
type CreateRoutineRequest struct {
	Mode string `json:"mode"`
}

// PredictionView exposes a stored prediction.
type PredictionView struct {
	PredictionID            string    `json:"prediction_id"`
	PredictedHeightCm       int       `json:"predicted_height_cm"`
	Percentile              int       `json:"percentile"`
	DreamHeightOdds         int       `json:"dream_height_odds"`
	GrowthCompletionPercent int       `json:"growth_completion_percent"`
	Source                  string    `json:"source"`
	CreatedAt               time.Time `json:"created_at"`
}

// PredictionResponse is returned by POST /v1/predictions.
type PredictionResponse struct {
	Prediction PredictionView `json:"prediction"`
	Replay     bool           `json:"idempotent_replay"`
}

// ListPredictionsResponse packages a page of prediction history.
type ListPredictionsResponse struct {
	Items      []PredictionView `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// TaskView exposes one routine task.
type TaskView struct {
	TaskID          string `json:"task_id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Type            string `json:"type"`
	Reps            *int   `json:"reps,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

// RoutineDayView exposes one day of a plan.
type RoutineDayView struct {
	Day   int        `json:"day"`
	Tasks []TaskView `json:"tasks"`
}

// RoutineView exposes a complete plan.
type RoutineView struct {
	RoutineID   string           `json:"routine_id"`
	Status      string           `json:"status"`
	PeriodLabel string           `json:"period_label"`
	Source      string           `json:"source"`
	CreatedAt   time.Time        `json:"created_at"`
	Days        []RoutineDayView `json:"days"`
}

// RoutineResponse is returned by POST /v1/routines.
type RoutineResponse struct {
	Routine RoutineView `json:"routine"`
	Replay  bool        `json:"idempotent_replay"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrPredictionNotFound),
		errors.Is(err, domain.ErrRoutineNotFound),
		errors.Is(err, domain.ErrRoutineDayNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toPredictionView(rec domain.PredictionRecord) PredictionView {
	return PredictionView{
		PredictionID:            rec.ID,
		PredictedHeightCm:       rec.PredictedHeightCm,
		Percentile:              rec.Percentile,
		DreamHeightOdds:         rec.DreamHeightOdds,
		GrowthCompletionPercent: rec.GrowthCompletionPercent,
		Source:                  string(rec.Source),
		CreatedAt:               rec.CreatedAt,
	}
}

func toRoutineDayView(day domain.RoutineDay) RoutineDayView {
	view := RoutineDayView{Day: day.DayIndex, Tasks: make([]TaskView, 0, len(day.Tasks))}
	for _, task := range day.Tasks {
		view.Tasks = append(view.Tasks, TaskView{
			TaskID:          task.ID,
			Name:            task.Name,
			Category:        string(task.Category),
			Type:            string(task.TaskType),
			Reps:            task.Reps,
			DurationMinutes: task.DurationMinutes,
		})
	}
	return view
}

func toRoutineView(plan domain.RoutinePlan) RoutineView {
	view := RoutineView{
		RoutineID:   plan.ID,
		Status:      string(plan.Status),
		PeriodLabel: plan.PeriodLabel,
		Source:      string(plan.Source),
		CreatedAt:   plan.CreatedAt,
		Days:        make([]RoutineDayView, 0, len(plan.Days)),
	}
	for _, day := range plan.Days {
		view.Days = append(view.Days, toRoutineDayView(day))
	}
	return view
}
