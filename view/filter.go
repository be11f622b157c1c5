// Package view derives display projections from a task collection. Every
// function here is pure: same input, same output, no side effects.
package view

import (
	"slices"
	"strings"
	"time"

	"github.com/omalloc/taskboard/api/task"
)

// AllTasks is the status filter that keeps every status.
const AllTasks = "All Tasks"

type DateFilter string

const (
	DueAll      DateFilter = "all"
	DueToday    DateFilter = "today"
	DueTomorrow DateFilter = "tomorrow"
	DueThisWeek DateFilter = "this-week"
	DueOverdue  DateFilter = "overdue"
)

var DateFilters = []DateFilter{DueAll, DueToday, DueTomorrow, DueThisWeek, DueOverdue}

// FilterTasks narrows tasks by status, then by a case-insensitive substring
// search over title and description, then by due date relative to now. The
// input order is preserved and the input slice is not modified.
func FilterTasks(tasks []task.Task, status string, query string, due DateFilter, now time.Time) []task.Task {
	result := slices.Clone(tasks)

	if status != AllTasks {
		result = slices.DeleteFunc(result, func(t task.Task) bool {
			return string(t.Status) != status
		})
	}

	if query != "" {
		q := strings.ToLower(query)
		result = slices.DeleteFunc(result, func(t task.Task) bool {
			return !strings.Contains(strings.ToLower(t.Title), q) &&
				!strings.Contains(strings.ToLower(t.Description), q)
		})
	}

	if keep := dueMatcher(due, now); keep != nil {
		loc := now.Location()
		result = slices.DeleteFunc(result, func(t task.Task) bool {
			d, ok := t.DueDate(loc)
			return !ok || !keep(t, d)
		})
	}

	if result == nil {
		result = []task.Task{}
	}
	return result
}

// dueMatcher returns nil when due does not filter at all.
func dueMatcher(due DateFilter, now time.Time) func(task.Task, time.Time) bool {
	today := midnight(now)
	tomorrow := today.AddDate(0, 0, 1)
	endOfWeek := today.AddDate(0, 0, 7-int(today.Weekday()))

	switch due {
	case DueToday:
		return func(_ task.Task, d time.Time) bool { return d.Equal(today) }
	case DueTomorrow:
		return func(_ task.Task, d time.Time) bool { return d.Equal(tomorrow) }
	case DueThisWeek:
		return func(_ task.Task, d time.Time) bool {
			return !d.Before(today) && !d.After(endOfWeek)
		}
	case DueOverdue:
		return func(t task.Task, d time.Time) bool {
			return d.Before(today) && t.Status != task.StatusDone
		}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
