// Package domain defines the records and collaborator contracts shared by the growth service.
package domain

import "time"

// Gender categories accepted during onboarding.
const (
	GenderMale        = "male"
	GenderFemale      = "female"
	GenderNonBinary   = "non_binary"
	GenderUnspecified = "unspecified"
)

// ProfileSnapshot is the read-only biometric and lifestyle view of a user.
type ProfileSnapshot struct {
	UserID            string
	Gender            string
	Ethnicity         string
	WorkoutCapacity   string
	DateOfBirth       time.Time
	MotherHeightCm    int
	FatherHeightCm    int
	FootSizeCm        int
	AverageSleepHours float64
	DreamHeightCm     int
}

// Measurement is a single recorded height.
type Measurement struct {
	ID         string
	UserID     string
	HeightCm   int
	RecordedAt time.Time
}

// PainSeverity grades a reported pain event.
type PainSeverity string

const (
	PainMild     PainSeverity = "mild"
	PainModerate PainSeverity = "moderate"
	PainSevere   PainSeverity = "severe"
)

// PainEvent is written by the pain reporting flow and only read here.
type PainEvent struct {
	ID        string
	UserID    string
	Area      string
	Severity  PainSeverity
	Notes     string
	CreatedAt time.Time
}

// TaskLogEntry records whether a routine task was completed on a given date.
type TaskLogEntry struct {
	ID            string
	UserID        string
	RoutineID     string
	RoutineTaskID string
	DayIndex      int
	Date          time.Time
	Completed     bool
	LoggedAt      time.Time
}
