package domain

import "time"

// RoutineStatus doubles as the generation mode of a plan.
type RoutineStatus string

const (
	RoutineActive   RoutineStatus = "active"
	RoutineRecovery RoutineStatus = "recovery"
)

// Valid reports whether the status is one of the known modes.
func (s RoutineStatus) Valid() bool {
	return s == RoutineActive || s == RoutineRecovery
}

// TaskType is the kind of effort a task asks for.
type TaskType string

const (
	TaskStretch   TaskType = "stretch"
	TaskStrength  TaskType = "strength"
	TaskLifestyle TaskType = "lifestyle"
)

// Category is the catalog a task was drawn from.
type Category string

const (
	CategoryDiet     Category = "diet"
	CategoryProtocol Category = "protocol"
	CategoryExercise Category = "exercise"
)

// Numeric bounds shared by generated and persisted tasks.
const (
	MinReps            = 1
	MaxReps            = 50
	MinDurationMinutes = 5
	MaxDurationMinutes = 60
)

// RoutineTask is one item of a routine day.
type RoutineTask struct {
	ID              string
	Name            string
	Category        Category
	TaskType        TaskType
	Reps            *int
	DurationMinutes *int
}

// RoutineDay groups the tasks scheduled for a single plan day.
type RoutineDay struct {
	ID       string
	DayIndex int
	Tasks    []RoutineTask
}

// RoutinePlan is a complete multi-day plan. It is stored and replaced as a whole.
type RoutinePlan struct {
	ID          string
	UserID      string
	Status      RoutineStatus
	PeriodLabel string
	Source      Source
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Days        []RoutineDay
}

// Day returns the day with the given index.
func (p RoutinePlan) Day(index int) (RoutineDay, bool) {
	for _, day := range p.Days {
		if day.DayIndex == index {
			return day, true
		}
	}
	return RoutineDay{}, false
}

// PeriodLabel formats the plan period as YYYY-MM in UTC.
func PeriodLabel(t time.Time) string {
	return t.UTC().Format("2006-01")
}
