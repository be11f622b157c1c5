package view

import (
	"time"

	"github.com/omalloc/taskboard/api/task"
)

// GridCells is six Sunday-first weeks.
const GridCells = 42

type Day struct {
	Date time.Time
	// InMonth is false for the leading and trailing days borrowed from the
	// neighbouring months.
	InMonth bool
	Tasks   []task.Task
}

// MonthGrid lays out the month containing month as a 42-cell calendar, each
// cell holding the tasks due that day.
func MonthGrid(tasks []task.Task, month time.Time) []Day {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	start := first.AddDate(0, 0, -int(first.Weekday()))

	byDate := make(map[string][]task.Task)
	for _, t := range tasks {
		if d, ok := t.DueDate(month.Location()); ok {
			key := d.Format(task.DateLayout)
			byDate[key] = append(byDate[key], t)
		}
	}

	days := make([]Day, GridCells)
	for i := range days {
		d := start.AddDate(0, 0, i)
		days[i] = Day{
			Date:    d,
			InMonth: d.Month() == first.Month(),
			Tasks:   byDate[d.Format(task.DateLayout)],
		}
	}
	return days
}

// TasksOn returns the tasks due on the calendar day of day.
func TasksOn(tasks []task.Task, day time.Time) []task.Task {
	want := day.Format(task.DateLayout)
	var out []task.Task
	for _, t := range tasks {
		if d, ok := t.DueDate(day.Location()); ok && d.Format(task.DateLayout) == want {
			out = append(out, t)
		}
	}
	return out
}

// FormatDate renders a stored YYYY-MM-DD date as "Jan 2, 2006". Empty or
// unparsable input renders as "".
func FormatDate(date string) string {
	d, ok := task.Task{Date: date}.DueDate(time.Local)
	if !ok {
		return ""
	}
	return d.Format("Jan 2, 2006")
}
