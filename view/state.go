package view

import (
	"time"

	"github.com/omalloc/taskboard/api/task"
)

const (
	ViewTable = "table"
	ViewGrid  = "grid"
)

// State is the user's current way of looking at the task list.
type State struct {
	SortBy       string
	SortOrder    string
	StatusFilter string
	Search       string
	ViewMode     string
	DateFilter   DateFilter
}

func DefaultState() State {
	return State{
		SortBy:       SortByDate,
		SortOrder:    OrderAsc,
		StatusFilter: AllTasks,
		ViewMode:     ViewTable,
		DateFilter:   DueAll,
	}
}

// Apply filters then sorts tasks according to the state.
func (s State) Apply(tasks []task.Task, now time.Time) []task.Task {
	filtered := FilterTasks(tasks, s.StatusFilter, s.Search, s.DateFilter, now)
	return SortTasks(filtered, s.SortBy, s.SortOrder)
}
