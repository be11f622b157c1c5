package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/omalloc/taskboard/api/task"
	"github.com/omalloc/taskboard/render"
	"github.com/omalloc/taskboard/store"
	"github.com/omalloc/taskboard/view"
)

const monthLayout = "2006-01"

// taskFlags are the editable task fields shared by add and edit.
type taskFlags struct {
	title       string
	description string
	status      string
	priority    string
	date        string
	progress    int
}

func (f *taskFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.title, "title", "t", "", "task title")
	fs.StringVarP(&f.description, "description", "d", "", "task description")
	fs.StringVarP(&f.status, "status", "s", "", `"Pending", "In Progress" or "Done"`)
	fs.StringVarP(&f.priority, "priority", "p", "", `"Low", "Medium" or "High"`)
	fs.StringVar(&f.date, "due", "", "due date, YYYY-MM-DD")
	fs.IntVar(&f.progress, "progress", 0, "progress 0-100, kept for In Progress tasks")
}

func (f *taskFlags) draft() task.Draft {
	return task.Draft{
		Title:       f.title,
		Description: f.description,
		Status:      task.Status(f.status),
		Priority:    task.Priority(f.priority),
		Date:        f.date,
		Progress:    f.progress,
	}
}

// apply overwrites the fields of t whose flags were set on the command line.
func (f *taskFlags) apply(fs *pflag.FlagSet, t task.Task) task.Task {
	if fs.Changed("title") {
		t.Title = f.title
	}
	if fs.Changed("description") {
		t.Description = f.description
	}
	if fs.Changed("status") {
		t.Status = task.Status(f.status)
	}
	if fs.Changed("priority") {
		t.Priority = task.Priority(f.priority)
	}
	if fs.Changed("due") {
		t.Date = f.date
	}
	if fs.Changed("progress") {
		t.Progress = task.ClampProgress(f.progress)
	}
	return t
}

// printSummary subscribes a digest of the collection to the bus, so every
// confirmed mutation prints the new totals.
func printSummary(w io.Writer, e *env) func() {
	return e.bus.Subscribe(func() {
		if err := render.Summary(w, view.Aggregate(e.store.Tasks(), time.Now())); err != nil {
			log.Errorf("render summary: %v", err)
		}
	})
}

func newAddCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			defer printSummary(cmd.OutOrStdout(), e)()

			t, err := e.store.Add(cmd.Context(), f.draft())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", t.ID)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newEditCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			defer printSummary(cmd.OutOrStdout(), e)()

			current, ok := e.store.Get(args[0])
			if !ok {
				return store.ErrTaskNotFound.WithMetadata(map[string]string{"id": args[0]})
			}
			t, err := e.store.Update(cmd.Context(), f.apply(cmd.Flags(), current))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", t.ID)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			defer printSummary(cmd.OutOrStdout(), e)()

			if err := e.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

// viewFlags bind a view.State to the command line.
func viewFlags(fs *pflag.FlagSet, st *view.State) {
	fs.StringVar(&st.StatusFilter, "status", st.StatusFilter, `status filter, "All Tasks" keeps every status`)
	fs.StringVarP(&st.Search, "search", "q", st.Search, "case-insensitive text in title or description")
	fs.StringVar((*string)(&st.DateFilter), "due", string(st.DateFilter), "all, today, tomorrow, this-week or overdue")
	fs.StringVar(&st.SortBy, "sort", st.SortBy, "date or title")
	fs.StringVar(&st.SortOrder, "order", st.SortOrder, "asc or desc")
}

func newLsCmd() *cobra.Command {
	st := view.DefaultState()
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			now := time.Now()
			return render.Table(cmd.OutOrStdout(), st.Apply(e.store.Tasks(), now), now)
		},
	}
	viewFlags(cmd.Flags(), &st)
	return cmd
}

func newCalendarCmd() *cobra.Command {
	var month, day string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show tasks on a month calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			now := time.Now()
			tasks := e.store.Tasks()
			w := cmd.OutOrStdout()

			if day != "" {
				d, err := time.ParseInLocation(task.DateLayout, day, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				return render.Day(w, d, view.TasksOn(tasks, d), now)
			}

			m, err := parseMonth(month, now)
			if err != nil {
				return err
			}
			return render.Calendar(w, view.MonthGrid(tasks, m), m)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to show, YYYY-MM (default current)")
	cmd.Flags().StringVar(&day, "day", "", "list the tasks of one day, YYYY-MM-DD")
	return cmd
}

func parseMonth(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	m, err := time.ParseInLocation(monthLayout, strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --month %q: %w", s, err)
	}
	return m, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return render.Stats(cmd.OutOrStdout(), view.Aggregate(e.store.Tasks(), time.Now()))
		},
	}
}

func newWatchCmd() *cobra.Command {
	st := view.DefaultState()
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the task list on screen, refreshing in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			draw := func() {
				now := time.Now()
				fmt.Fprint(w, "\033[H\033[2J")
				if err := render.Table(w, st.Apply(e.store.Tasks(), now), now); err != nil {
					log.Errorf("render: %v", err)
				}
			}
			e.bus.Subscribe(draw)
			draw()

			return newApp(e).Run()
		},
	}
	viewFlags(cmd.Flags(), &st)
	return cmd
}
