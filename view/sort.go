package view

import (
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/omalloc/taskboard/api/task"
)

const (
	SortByDate  = "date"
	SortByTitle = "title"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SortTasks returns a sorted copy of tasks. sortBy "date" orders by due
// date with undated tasks treated as the Unix epoch; anything else orders
// by title using locale-aware collation. order "desc" inverts the
// comparison. Equal elements keep their input order.
func SortTasks(tasks []task.Task, sortBy, order string) []task.Task {
	sorted := slices.Clone(tasks)

	var cmp func(a, b task.Task) int
	if sortBy == SortByDate {
		cmp = func(a, b task.Task) int {
			return sortKey(a).Compare(sortKey(b))
		}
	} else {
		col := collate.New(language.English)
		cmp = func(a, b task.Task) int {
			return col.CompareString(a.Title, b.Title)
		}
	}

	if order == OrderDesc {
		asc := cmp
		cmp = func(a, b task.Task) int { return -asc(a, b) }
	}

	slices.SortStableFunc(sorted, cmp)
	return sorted
}

func sortKey(t task.Task) time.Time {
	if d, ok := t.DueDate(time.Local); ok {
		return d
	}
	return time.Unix(0, 0)
}
