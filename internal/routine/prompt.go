package routine

import (
	"encoding/json"
	"fmt"
	"strings"

	"example.com/growth/internal/domain"
)

// Input is the canonical generation input for a routine. It is hashed into the plan
// fingerprint, so the catalog version travels with it.
type Input struct {
	UserID                     string               `json:"-"`
	Gender                     string               `json:"gender"`
	Ethnicity                  string               `json:"ethnicity"`
	WorkoutCapacity            string               `json:"workoutCapacity"`
	DateOfBirth                string               `json:"dateOfBirth"`
	MotherHeightCm             int                  `json:"motherHeightCm"`
	FatherHeightCm             int                  `json:"fatherHeightCm"`
	FootSizeCm                 int                  `json:"footSizeCm"`
	AverageSleepHours          float64              `json:"averageSleepHours"`
	DreamHeightCm              int                  `json:"dreamHeightCm"`
	LatestPredictionCm         *int                 `json:"latestPredictionCm,omitempty"`
	LatestPredictionPercentile *int                 `json:"latestPredictionPercentile,omitempty"`
	Mode                       domain.RoutineStatus `json:"mode"`
	CatalogVersion             string               `json:"catalogVersion"`
}

// NewInput builds the canonical input for a profile, its latest prediction (optional) and mode.
func NewInput(profile domain.ProfileSnapshot, prediction *domain.PredictionRecord, mode domain.RoutineStatus, catalogVersion string) Input {
	in := Input{
		UserID:            profile.UserID,
		Gender:            profile.Gender,
		Ethnicity:         profile.Ethnicity,
		WorkoutCapacity:   profile.WorkoutCapacity,
		DateOfBirth:       profile.DateOfBirth.UTC().Format("2006-01-02"),
		MotherHeightCm:    profile.MotherHeightCm,
		FatherHeightCm:    profile.FatherHeightCm,
		FootSizeCm:        profile.FootSizeCm,
		AverageSleepHours: profile.AverageSleepHours,
		DreamHeightCm:     profile.DreamHeightCm,
		Mode:              mode,
		CatalogVersion:    catalogVersion,
	}
	if prediction != nil {
		height, percentile := prediction.PredictedHeightCm, prediction.Percentile
		in.LatestPredictionCm = &height
		in.LatestPredictionPercentile = &percentile
	}
	return in
}

// SystemPrompt returns the fixed instructions sent with every routine request.
func SystemPrompt() string {
	return strings.Join([]string{
		"You are a deterministic routine planner.",
		"Use only the provided structured input and catalogs.",
		"Respond with JSON only, no prose.",
	}, " ")
}

type promptItem struct {
	Name     string          `json:"name"`
	Type     domain.TaskType `json:"type"`
	Weight   int             `json:"weight"`
	Reps     int             `json:"reps,omitempty"`
	Duration int             `json:"durationMinutes,omitempty"`
	Overload string          `json:"overload"`
}

// UserPrompt renders the input, the catalogs and the structural rules of a plan.
func (c *Catalog) UserPrompt(in Input) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}

	catalogs := make(map[domain.Category][]promptItem, len(Categories))
	for _, category := range Categories {
		for _, item := range c.items[category] {
			catalogs[category] = append(catalogs[category], promptItem{
				Name:     item.Name,
				Type:     item.TaskType,
				Weight:   item.Weight,
				Reps:     item.Reps,
				Duration: item.DurationMinutes,
				Overload: item.Overload,
			})
		}
	}
	catalogJSON, err := json.Marshal(catalogs)
	if err != nil {
		return "", err
	}

	overload := "Each time an item reappears in the plan, apply its overload note to reps or durationMinutes."
	if in.Mode == domain.RoutineRecovery {
		overload = "This is a recovery plan: keep every item at its base reps or durationMinutes."
	}

	return strings.Join([]string{
		"Input JSON:",
		string(payload),
		"Catalogs JSON:",
		string(catalogJSON),
		fmt.Sprintf("Build exactly %d days numbered 1..%d, each with exactly %d tasks: %d diet, %d protocol, %d exercise.",
			DayCount, DayCount, TasksPerDay,
			Quota[domain.CategoryDiet], Quota[domain.CategoryProtocol], Quota[domain.CategoryExercise]),
		"Use only catalog names with their catalog type. Never repeat a name within a day.",
		"Rotate items across days; an item's weight is how often it should appear relative to the others.",
		overload,
		fmt.Sprintf("reps must be %d-%d, durationMinutes must be %d-%d; give at least one of them per task.",
			domain.MinReps, domain.MaxReps, domain.MinDurationMinutes, domain.MaxDurationMinutes),
		`Respond with JSON object: { "days": [ { "day": number, "tasks": [ { "name": string, "type": "stretch"|"strength"|"lifestyle", "reps": number?, "durationMinutes": number? } ] } ] }`,
		"Do not include explanations.",
	}, "\n"), nil
}
