// Package store keeps the authoritative in-memory task collection and
// mediates every mutation of it.
//
// Mutations are optimistic: the change is visible in memory before the
// record store confirms it, and is reverted if the record store fails.
// Successful mutations are announced on the update bus.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/omalloc/taskboard/api/task"
	"github.com/omalloc/taskboard/bus"
	"github.com/omalloc/taskboard/storage"
)

var (
	ErrTaskNotFound = errors.NotFound("TASK_NOT_FOUND", "task not found")
	ErrTaskExists   = errors.Conflict("TASK_EXISTS", "task already exists")
)

type Option func(*Store)

// WithClock overrides the clock used for field defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type Store struct {
	records storage.RecordStore
	bus     *bus.Bus
	now     func() time.Time

	mu      sync.RWMutex
	tasks   []task.Task
	loading bool
	syncing bool
	// tails holds the newest in-flight mutation per id.
	tails map[string]*mutation
}

// New creates a store over records that announces changes on b.
func New(records storage.RecordStore, b *bus.Bus, opts ...Option) *Store {
	s := &Store{
		records: records,
		bus:     b,
		now:     time.Now,
		tails:   make(map[string]*mutation),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tasks returns a copy of the collection.
func (s *Store) Tasks() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return task.Task{}, false
}

// Loading reports whether a foreground load is running.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Syncing reports whether a background refresh is running.
func (s *Store) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// Load replaces the collection with the records in the record store,
// filling missing fields with their defaults. showLoadingIndicator selects
// which flag is raised while the load runs: Loading for a first load,
// Syncing for a silent refresh. A failed load is logged and leaves the
// collection empty.
func (s *Store) Load(ctx context.Context, showLoadingIndicator bool) {
	s.setLoadFlag(showLoadingIndicator, true)
	defer s.setLoadFlag(showLoadingIndicator, false)

	records, err := s.records.List(ctx)
	if err != nil {
		log.Errorf("failed to load tasks: %v", err)
		s.mu.Lock()
		s.tasks = nil
		s.mu.Unlock()
		return
	}

	now := s.now()
	tasks := make([]task.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, task.Normalize(r, now))
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	log.Debugf("loaded %d tasks", len(tasks))
}

// Refresh reloads the collection without raising the loading flag.
func (s *Store) Refresh(ctx context.Context) {
	s.Load(ctx, false)
}

func (s *Store) setLoadFlag(foreground, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if foreground {
		s.loading = v
	} else {
		s.syncing = v
	}
}

// Add completes d into a task, appends it to the collection at once and
// persists it. On success the stored record replaces the optimistic entry;
// on failure the entry is removed again and the error returned.
func (s *Store) Add(ctx context.Context, d task.Draft) (task.Task, error) {
	t, err := task.New(d, s.now())
	if err != nil {
		return task.Task{}, err
	}

	m, err := s.begin("add", t.ID, func(*mutation) error {
		if s.indexOf(t.ID) >= 0 {
			return ErrTaskExists.WithMetadata(map[string]string{"id": t.ID})
		}
		s.tasks = append(s.tasks, t)
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	m.await()
	saved, err := s.records.Save(ctx, t)
	s.settle(m, err,
		func(m *mutation) {
			// a delete queued behind us may already have taken the entry out
			if i := s.indexOf(t.ID); i >= 0 && s.isTail(m) {
				s.tasks[i] = saved
			}
		},
		func(m *mutation) {
			// mutations queued behind us hold the entry now and drop it themselves
			if s.isTail(m) {
				s.removeLocked(t.ID)
			}
			m.vanished = true
		},
	)
	if err != nil {
		return task.Task{}, fmt.Errorf("save task %s: %w", t.ID, err)
	}

	s.bus.Notify()
	return saved, nil
}

// Update replaces the task with the same id. The task must already be in
// the collection. Progress is clamped to [0,100]. On failure the whole
// collection is restored to its state before the call.
func (s *Store) Update(ctx context.Context, t task.Task) (task.Task, error) {
	t.Progress = task.ClampProgress(t.Progress)
	if err := task.Validate(t); err != nil {
		return task.Task{}, err
	}

	m, err := s.begin("update", t.ID, func(m *mutation) error {
		i := s.indexOf(t.ID)
		if i < 0 {
			return notFound(t.ID)
		}
		m.snapshot = slices.Clone(s.tasks)
		s.tasks[i] = t
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	m.await()
	if m.orphaned() {
		err := notFound(t.ID)
		s.settle(m, err, nil, func(m *mutation) {
			if s.isTail(m) {
				s.removeLocked(t.ID)
			}
			m.vanished = true
		})
		return task.Task{}, err
	}

	saved, err := s.records.Save(ctx, t)
	s.settle(m, err,
		func(m *mutation) {
			if i := s.indexOf(t.ID); i >= 0 && s.isTail(m) {
				s.tasks[i] = saved
			}
		},
		func(m *mutation) {
			s.tasks = m.snapshot
		},
	)
	if err != nil {
		return task.Task{}, fmt.Errorf("save task %s: %w", t.ID, err)
	}

	s.bus.Notify()
	return saved, nil
}

// Delete removes the task with the given id at once and deletes its record.
// On failure the task is put back.
func (s *Store) Delete(ctx context.Context, id string) error {
	m, err := s.begin("delete", id, func(m *mutation) error {
		i := s.indexOf(id)
		if i < 0 {
			return notFound(id)
		}
		removed := s.tasks[i]
		m.removed, m.index = &removed, i
		s.tasks = slices.Delete(s.tasks, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}

	m.await()
	if m.orphaned() {
		// the task was never stored, so it stays removed
		err := notFound(id)
		s.settle(m, err, nil, func(m *mutation) {
			m.vanished = true
		})
		return err
	}

	err = s.records.Delete(ctx, id)
	s.settle(m, err, nil, func(m *mutation) {
		if s.indexOf(id) >= 0 {
			return
		}
		at := min(m.index, len(s.tasks))
		s.tasks = slices.Insert(s.tasks, at, *m.removed)
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	s.bus.Notify()
	return nil
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t task.Task) bool {
		return t.ID == id
	})
}

// removeLocked must be called with mu held.
func (s *Store) removeLocked(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.tasks = slices.Delete(s.tasks, i, i+1)
	}
}

// isTail reports whether m is the newest mutation on its id. Older ones
// must not overwrite what a newer one already applied. Call with mu held.
func (s *Store) isTail(m *mutation) bool {
	return s.tails[m.id] == m
}

func notFound(id string) error {
	return ErrTaskNotFound.WithMetadata(map[string]string{"id": id})
}
