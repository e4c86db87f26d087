package prediction

import (
	"encoding/json"
	"strings"
	"time"

	"example.com/growth/internal/domain"
)

// Input is the canonical generation input for a prediction. Its JSON form is both the
// user prompt payload and the fingerprint source, so every field that influences the
// result must live here.
type Input struct {
	Gender                 string  `json:"gender"`
	Ethnicity              string  `json:"ethnicity"`
	WorkoutCapacity        string  `json:"workoutCapacity"`
	DateOfBirth            string  `json:"dateOfBirth"`
	MotherHeightCm         int     `json:"motherHeightCm"`
	FatherHeightCm         int     `json:"fatherHeightCm"`
	FootSizeCm             int     `json:"footSizeCm"`
	AverageSleepHours      float64 `json:"averageSleepHours"`
	DreamHeightCm          int     `json:"dreamHeightCm"`
	LatestHeightCm         *int    `json:"latestHeightCm,omitempty"`
	LatestHeightRecordedAt string  `json:"latestHeightRecordedAt,omitempty"`
}

// NewInput builds the canonical input from a profile and its optional latest measurement.
func NewInput(profile domain.ProfileSnapshot, latest *domain.Measurement) Input {
	in := Input{
		Gender:            profile.Gender,
		Ethnicity:         profile.Ethnicity,
		WorkoutCapacity:   profile.WorkoutCapacity,
		DateOfBirth:       profile.DateOfBirth.UTC().Format("2006-01-02"),
		MotherHeightCm:    profile.MotherHeightCm,
		FatherHeightCm:    profile.FatherHeightCm,
		FootSizeCm:        profile.FootSizeCm,
		AverageSleepHours: profile.AverageSleepHours,
		DreamHeightCm:     profile.DreamHeightCm,
	}
	if latest != nil {
		height := latest.HeightCm
		in.LatestHeightCm = &height
		in.LatestHeightRecordedAt = latest.RecordedAt.UTC().Format(time.RFC3339)
	}
	return in
}

// SystemPrompt returns the fixed instructions sent with every prediction request.
func SystemPrompt() string {
	return strings.Join([]string{
		"You are a deterministic height prediction engine.",
		"Use only the provided structured input.",
		"Respond with JSON only, no prose.",
		"Percentile must be relative to peers of the same age.",
	}, " ")
}

// UserPrompt renders the structured input and the expected answer shape.
func UserPrompt(in Input) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		"Input JSON:",
		string(payload),
		`Respond with JSON object: { "predictedAdultHeightCm": number (100-250), "percentile": number (1-99), "dreamHeightOddsPercent": number (0-100), "growthCompletionPercent": number (0-100) }`,
		"percentile = how tall this user is versus people the same age.",
		"Do not include explanations.",
	}, "\n"), nil
}
