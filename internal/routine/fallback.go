package routine

import (
	"example.com/growth/internal/domain"
)

// State is the selection state threaded through the fallback builder: one rotating cursor
// per category pool and the number of times each item has already been scheduled.
type State struct {
	Cursors     map[domain.Category]int
	Appearances map[string]int
}

// NewState returns the zero state every fresh plan starts from.
func NewState() State {
	return State{
		Cursors:     make(map[domain.Category]int, len(Categories)),
		Appearances: make(map[string]int),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := NewState()
	for k, v := range s.Cursors {
		out.Cursors[k] = v
	}
	for k, v := range s.Appearances {
		out.Appearances[k] = v
	}
	return out
}

// Build lays out a full plan by walking the weighted pools from the given state. It never
// mutates its argument; the state after the last day is returned alongside the plan. Active
// plans raise an item's amount by its step on every reappearance, recovery plans keep the
// base amount.
func (c *Catalog) Build(mode domain.RoutineStatus, from State) ([]domain.RoutineDay, State) {
	state := from.Clone()
	days := make([]domain.RoutineDay, 0, DayCount)
	for index := 1; index <= DayCount; index++ {
		day := domain.RoutineDay{DayIndex: index, Tasks: make([]domain.RoutineTask, 0, TasksPerDay)}
		for _, category := range Categories {
			for _, item := range c.pick(category, Quota[category], &state) {
				day.Tasks = append(day.Tasks, c.schedule(item, mode, &state))
			}
		}
		days = append(days, day)
	}
	return days, state
}

// Fallback builds a plan from the zero state.
func (c *Catalog) Fallback(mode domain.RoutineStatus) []domain.RoutineDay {
	days, _ := c.Build(mode, NewState())
	return days
}

// pick takes n distinct items from the category pool, advancing its cursor. An entry equal
// to an item already picked today is skipped.
func (c *Catalog) pick(category domain.Category, n int, state *State) []Item {
	pool := c.pools[category]
	picked := make([]Item, 0, n)
	for len(picked) < n {
		cursor := state.Cursors[category]
		item := pool[cursor%len(pool)]
		state.Cursors[category] = cursor + 1
		if containsItem(picked, item.Name) {
			continue
		}
		picked = append(picked, item)
	}
	return picked
}

func (c *Catalog) schedule(item Item, mode domain.RoutineStatus, state *State) domain.RoutineTask {
	seen := state.Appearances[item.Name]
	state.Appearances[item.Name] = seen + 1

	increment := 0
	if mode != domain.RoutineRecovery {
		increment = seen * item.Step
	}

	task := domain.RoutineTask{
		Name:     item.Name,
		Category: item.Category,
		TaskType: item.TaskType,
	}
	if item.Reps != 0 {
		reps := clamp(item.Reps+increment, domain.MinReps, domain.MaxReps)
		task.Reps = &reps
	} else {
		minutes := clamp(item.DurationMinutes+increment, domain.MinDurationMinutes, domain.MaxDurationMinutes)
		task.DurationMinutes = &minutes
	}
	return task
}

func containsItem(items []Item, name string) bool {
	for _, item := range items {
		if item.Name == name {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
