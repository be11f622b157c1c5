// Package render prints view projections as plain text.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/omalloc/taskboard/api/task"
	"github.com/omalloc/taskboard/view"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// Table prints tasks one per row. Overdue tasks are flagged with "!".
func Table(w io.Writer, tasks []task.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "no tasks")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tPROGRESS")
	for _, t := range tasks {
		due := view.FormatDate(t.Date)
		if view.IsOverdue(t, now) {
			due = "! " + due
		}
		progress := "-"
		if t.Status == task.StatusInProgress {
			progress = fmt.Sprintf("%d%%", t.Progress)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, due, progress)
	}
	return tw.Flush()
}

// Summary prints a one-line digest of st.
func Summary(w io.Writer, st view.Stats) error {
	_, err := fmt.Fprintf(w, "%d tasks: %d pending, %d in progress, %d done, %d overdue (%d%% complete)\n",
		st.Total, st.ByStatus.Pending, st.ByStatus.InProgress, st.ByStatus.Done, st.Overdue,
		view.Percent(st.CompletionRate))
	return err
}

// Stats prints the analytics page.
func Stats(w io.Writer, st view.Stats) error {
	if st.Total == 0 {
		_, err := fmt.Fprintln(w, "no data available, create some tasks to see analytics")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Completion rate\t%d%%\n", view.Percent(st.CompletionRate))
	fmt.Fprintf(tw, "Avg progress\t%d%%\n", st.AvgProgress)
	fmt.Fprintf(tw, "Productivity\t%d%%\n", view.Percent(st.Productivity))
	fmt.Fprintf(tw, "On track\t%d\n", st.OnTrack)
	fmt.Fprintf(tw, "High priority\t%d\n", st.HighPriority)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "STATUS\tCOUNT")
	fmt.Fprintf(tw, "%s\t%d\n", task.StatusDone, st.ByStatus.Done)
	fmt.Fprintf(tw, "%s\t%d\n", task.StatusInProgress, st.ByStatus.InProgress)
	fmt.Fprintf(tw, "%s\t%d\n", task.StatusPending, st.ByStatus.Pending)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "PRIORITY\tCOUNT\tAVG PROGRESS\tSAMPLE")
	for _, p := range st.ByPriority {
		fmt.Fprintf(tw, "%s\t%d\t%d%%\t%s\n", p.Priority, p.Count, p.AvgProgress, strings.Join(p.Sample, ", "))
	}

	if len(st.TopProgress) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "IN PROGRESS\tPROGRESS\tPRIORITY\tDUE")
		for _, e := range st.TopProgress {
			fmt.Fprintf(tw, "%s\t%d%%\t%s\t%s\n", e.Name, e.Progress, e.Priority, view.FormatDate(e.Date))
		}
	}

	if len(st.Monthly) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "MONTH\tCOMPLETED\tIN PROGRESS\tPENDING")
		for _, m := range st.Monthly {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", m.Month.String()[:3], m.Completed, m.InProgress, m.Pending)
		}
	}
	return tw.Flush()
}

// Calendar prints a month grid. Each cell shows the day number and, when
// tasks are due, their count. Days outside the month are dimmed with
// brackets.
func Calendar(w io.Writer, days []view.Day, month time.Time) error {
	fmt.Fprintf(w, "%s %d\n", month.Month(), month.Year())

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "Sun\tMon\tTue\tWed\tThu\tFri\tSat\t")
	for i, d := range days {
		cell := fmt.Sprintf("%d", d.Date.Day())
		if n := len(d.Tasks); n > 0 {
			cell = fmt.Sprintf("%s(%d)", cell, n)
		}
		if !d.InMonth {
			cell = "[" + cell + "]"
		}
		fmt.Fprint(tw, cell, "\t")
		if i%7 == 6 {
			fmt.Fprintln(tw)
		}
	}
	return tw.Flush()
}

// Day prints the tasks due on one calendar day with a status breakdown.
func Day(w io.Writer, day time.Time, tasks []task.Task, now time.Time) error {
	fmt.Fprintf(w, "%s\n", day.Format("Monday, January 2"))
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "no tasks scheduled")
		return err
	}
	if err := Table(w, tasks, now); err != nil {
		return err
	}
	c := view.CountByStatus(tasks)
	_, err := fmt.Fprintf(w, "%d done, %d in progress, %d pending\n", c.Done, c.InProgress, c.Pending)
	return err
}
