package view

import (
	"math"
	"slices"
	"time"

	"github.com/omalloc/taskboard/api/task"
)

const (
	maxTopProgress    = 8
	maxMonths         = 6
	maxPrioritySample = 3
	displayNameLen    = 15
)

// StatusCounts is a per-status breakdown.
type StatusCounts struct {
	Pending    int
	InProgress int
	Done       int
}

func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Done
}

func (c *StatusCounts) add(s task.Status) {
	switch s {
	case task.StatusPending:
		c.Pending++
	case task.StatusInProgress:
		c.InProgress++
	case task.StatusDone:
		c.Done++
	}
}

// CountByStatus counts tasks per status.
func CountByStatus(tasks []task.Task) StatusCounts {
	var c StatusCounts
	for _, t := range tasks {
		c.add(t.Status)
	}
	return c
}

type PriorityStat struct {
	Priority task.Priority
	Count    int
	// AvgProgress is the rounded mean progress over every task of this
	// priority, whatever its status.
	AvgProgress int
	// Sample holds up to three titles.
	Sample []string
}

type ProgressEntry struct {
	ID       string
	Name     string
	FullName string
	Progress int
	Priority task.Priority
	Date     string
}

type MonthStat struct {
	Month      time.Month
	Completed  int
	InProgress int
	Pending    int
}

// Stats feeds the analytics page.
type Stats struct {
	Total    int
	ByStatus StatusCounts
	// ByPriority is ordered High, Medium, Low.
	ByPriority   []PriorityStat
	HighPriority int

	// AvgProgress is the rounded mean progress of InProgress tasks.
	AvgProgress int
	// CompletionRate is done/total in [0,1].
	CompletionRate float64
	// Productivity weighs InProgress tasks as half done, in [0,1].
	Productivity float64

	Overdue int
	OnTrack int

	// TopProgress lists InProgress tasks by descending progress.
	TopProgress []ProgressEntry
	// Monthly covers the current year, only months with at least one task,
	// at most the last six of them.
	Monthly []MonthStat
}

// Aggregate computes the analytics projection of tasks at now.
func Aggregate(tasks []task.Task, now time.Time) Stats {
	st := Stats{
		Total:    len(tasks),
		ByStatus: CountByStatus(tasks),
	}

	for _, p := range task.Priorities {
		ps := PriorityStat{Priority: p}
		sum := 0
		for _, t := range tasks {
			if t.Priority != p {
				continue
			}
			ps.Count++
			sum += t.Progress
			if len(ps.Sample) < maxPrioritySample {
				ps.Sample = append(ps.Sample, t.Title)
			}
		}
		ps.AvgProgress = roundedMean(sum, ps.Count)
		st.ByPriority = append(st.ByPriority, ps)
		if p == task.PriorityHigh {
			st.HighPriority = ps.Count
		}
	}

	progressSum := 0
	for _, t := range tasks {
		if t.Status == task.StatusInProgress {
			progressSum += t.Progress
			st.TopProgress = append(st.TopProgress, progressEntry(t))
		}
		if IsOverdue(t, now) {
			st.Overdue++
		}
	}
	st.AvgProgress = roundedMean(progressSum, st.ByStatus.InProgress)
	st.OnTrack = st.Total - st.Overdue

	if st.Total > 0 {
		total := float64(st.Total)
		st.CompletionRate = float64(st.ByStatus.Done) / total
		st.Productivity = (float64(st.ByStatus.Done) + 0.5*float64(st.ByStatus.InProgress)) / total
	}

	slices.SortStableFunc(st.TopProgress, func(a, b ProgressEntry) int {
		return b.Progress - a.Progress
	})
	if len(st.TopProgress) > maxTopProgress {
		st.TopProgress = st.TopProgress[:maxTopProgress]
	}

	st.Monthly = monthly(tasks, now)
	return st
}

// IsOverdue reports whether t is not done and its due date lies before now.
func IsOverdue(t task.Task, now time.Time) bool {
	if t.Status == task.StatusDone {
		return false
	}
	d, ok := t.DueDate(now.Location())
	return ok && d.Before(now)
}

// Percent renders a ratio in [0,1] as a rounded percentage.
func Percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

func monthly(tasks []task.Task, now time.Time) []MonthStat {
	var months [12]MonthStat
	for i := range months {
		months[i].Month = time.Month(i + 1)
	}

	for _, t := range tasks {
		d, ok := t.DueDate(now.Location())
		if !ok || d.Year() != now.Year() {
			continue
		}
		m := &months[d.Month()-1]
		switch t.Status {
		case task.StatusDone:
			m.Completed++
		case task.StatusInProgress:
			m.InProgress++
		case task.StatusPending:
			m.Pending++
		}
	}

	var out []MonthStat
	for _, m := range months {
		if m.Completed > 0 || m.InProgress > 0 || m.Pending > 0 {
			out = append(out, m)
		}
	}
	if len(out) > maxMonths {
		out = out[len(out)-maxMonths:]
	}
	return out
}

func progressEntry(t task.Task) ProgressEntry {
	name := t.Title
	if r := []rune(name); len(r) > displayNameLen {
		name = string(r[:displayNameLen]) + "..."
	}
	return ProgressEntry{
		ID:       t.ID,
		Name:     name,
		FullName: t.Title,
		Progress: t.Progress,
		Priority: t.Priority,
		Date:     t.Date,
	}
}

func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}
