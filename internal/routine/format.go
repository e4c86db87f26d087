package routine

import (
	"fmt"
	"strings"

	"example.com/growth/internal/domain"
)

// Render prints a plan as one line per task, in day order.
func Render(days []domain.RoutineDay) string {
	var b strings.Builder
	for _, day := range days {
		for _, task := range day.Tasks {
			fmt.Fprintf(&b, "day %02d | %-8s | %-24s | %-9s | %s\n", day.DayIndex, task.Category, task.Name, task.TaskType, Amount(task))
		}
	}
	return b.String()
}

// Amount formats the reps and/or minutes of a task.
func Amount(task domain.RoutineTask) string {
	parts := make([]string, 0, 2)
	if task.Reps != nil {
		parts = append(parts, fmt.Sprintf("reps=%d", *task.Reps))
	}
	if task.DurationMinutes != nil {
		parts = append(parts, fmt.Sprintf("min=%d", *task.DurationMinutes))
	}
	return strings.Join(parts, " ")
}
