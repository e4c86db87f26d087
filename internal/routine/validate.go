package routine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/inference"
)

type rawPlan struct {
	Days []rawDay `json:"days"`
}

type rawDay struct {
	Day   *float64  `json:"day"`
	Tasks []rawTask `json:"tasks"`
}

type rawTask struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Reps            *float64 `json:"reps"`
	DurationMinutes *float64 `json:"durationMinutes"`
}

// Parse decodes a gateway answer into plan days and checks it against the catalog. Any
// violation rejects the whole plan.
func (c *Catalog) Parse(raw string) ([]domain.RoutineDay, error) {
	body := inference.ExtractJSON(raw)
	if body == "" {
		return nil, errors.New("no JSON object in answer")
	}

	var parsed rawPlan
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}

	days := make([]domain.RoutineDay, 0, len(parsed.Days))
	for i, d := range parsed.Days {
		if d.Day == nil {
			return nil, fmt.Errorf("day #%d: missing day index", i+1)
		}
		if *d.Day != math.Trunc(*d.Day) {
			return nil, fmt.Errorf("day #%d: non-integer day index %v", i+1, *d.Day)
		}
		day := domain.RoutineDay{DayIndex: int(*d.Day)}
		for _, t := range d.Tasks {
			item, ok := c.Lookup(t.Name)
			if !ok {
				return nil, fmt.Errorf("day %d: unknown task %q", day.DayIndex, t.Name)
			}
			if domain.TaskType(t.Type) != item.TaskType {
				return nil, fmt.Errorf("day %d: task %q has type %q, catalog says %q", day.DayIndex, item.Name, t.Type, item.TaskType)
			}
			day.Tasks = append(day.Tasks, domain.RoutineTask{
				Name:            item.Name,
				Category:        item.Category,
				TaskType:        item.TaskType,
				Reps:            roundPtr(t.Reps),
				DurationMinutes: roundPtr(t.DurationMinutes),
			})
		}
		days = append(days, day)
	}

	if err := c.Check(days); err != nil {
		return nil, err
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].DayIndex < days[j].DayIndex })
	return days, nil
}

// Check enforces the structural contract of a plan: the day count and indices, the per-day
// category quotas, unique names within a day, catalog membership and numeric bounds. Plans
// built by the fallback pass the same check.
func (c *Catalog) Check(days []domain.RoutineDay) error {
	if len(days) != DayCount {
		return fmt.Errorf("plan has %d days, want %d", len(days), DayCount)
	}

	seen := make(map[int]bool, DayCount)
	for _, day := range days {
		if day.DayIndex < 1 || day.DayIndex > DayCount {
			return fmt.Errorf("day index %d outside [1,%d]", day.DayIndex, DayCount)
		}
		if seen[day.DayIndex] {
			return fmt.Errorf("day index %d repeated", day.DayIndex)
		}
		seen[day.DayIndex] = true

		if err := c.checkDay(day); err != nil {
			return fmt.Errorf("day %d: %w", day.DayIndex, err)
		}
	}
	return nil
}

func (c *Catalog) checkDay(day domain.RoutineDay) error {
	if len(day.Tasks) != TasksPerDay {
		return fmt.Errorf("%d tasks, want %d", len(day.Tasks), TasksPerDay)
	}

	counts := make(map[domain.Category]int, len(Categories))
	names := make(map[string]bool, TasksPerDay)
	for _, task := range day.Tasks {
		item, ok := c.Lookup(task.Name)
		if !ok {
			return fmt.Errorf("unknown task %q", task.Name)
		}
		if task.Category != item.Category {
			return fmt.Errorf("task %q filed under %q, catalog says %q", task.Name, task.Category, item.Category)
		}
		if task.TaskType != item.TaskType {
			return fmt.Errorf("task %q has type %q, catalog says %q", task.Name, task.TaskType, item.TaskType)
		}
		key := nameKey(task.Name)
		if names[key] {
			return fmt.Errorf("task %q repeated", task.Name)
		}
		names[key] = true
		counts[item.Category]++

		if err := checkAmounts(task); err != nil {
			return fmt.Errorf("task %q: %w", task.Name, err)
		}
	}

	for _, category := range Categories {
		if counts[category] != Quota[category] {
			return fmt.Errorf("%d %s tasks, want %d", counts[category], category, Quota[category])
		}
	}
	return nil
}

func checkAmounts(task domain.RoutineTask) error {
	if task.Reps == nil && task.DurationMinutes == nil {
		return errors.New("needs reps or durationMinutes")
	}
	if task.Reps != nil && (*task.Reps < domain.MinReps || *task.Reps > domain.MaxReps) {
		return fmt.Errorf("reps %d outside [%d,%d]", *task.Reps, domain.MinReps, domain.MaxReps)
	}
	if task.DurationMinutes != nil && (*task.DurationMinutes < domain.MinDurationMinutes || *task.DurationMinutes > domain.MaxDurationMinutes) {
		return fmt.Errorf("durationMinutes %d outside [%d,%d]", *task.DurationMinutes, domain.MinDurationMinutes, domain.MaxDurationMinutes)
	}
	return nil
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
