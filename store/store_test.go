package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omalloc/taskboard/api/task"
	"github.com/omalloc/taskboard/bus"
)

var errBoom = errors.New("record store unavailable")

// MockRecords is an in-memory record store whose calls can be failed or
// held in flight.
type MockRecords struct {
	mu      sync.Mutex
	records []task.Task
	calls   []string

	listErr   error
	saveErr   error
	deleteErr error

	// when set, each Save/List announces itself on entered and blocks until
	// release is closed
	entered chan string
	release chan struct{}
}

func newMockRecords(seed ...task.Task) *MockRecords {
	return &MockRecords{records: slices.Clone(seed)}
}

func (m *MockRecords) hold() {
	m.entered = make(chan string, 16)
	m.release = make(chan struct{})
}

func (m *MockRecords) wait(name string) {
	if m.entered == nil {
		return
	}
	m.entered <- name
	<-m.release
}

func (m *MockRecords) List(_ context.Context) ([]task.Task, error) {
	m.wait("list")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list")
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.records), nil
}

func (m *MockRecords) Save(_ context.Context, t task.Task) (task.Task, error) {
	m.wait(t.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "save:"+t.ID)
	if m.saveErr != nil {
		return task.Task{}, m.saveErr
	}
	if i := slices.IndexFunc(m.records, func(r task.Task) bool { return r.ID == t.ID }); i >= 0 {
		m.records[i] = t
	} else {
		m.records = append(m.records, t)
	}
	return t, nil
}

func (m *MockRecords) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.records = slices.DeleteFunc(m.records, func(r task.Task) bool { return r.ID == id })
	return nil
}

func (m *MockRecords) Close() error { return nil }

func (m *MockRecords) stored() []task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

func (m *MockRecords) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

var fixedNow = time.Date(2025, time.January, 2, 12, 0, 0, 0, time.Local)

func newTestStore(t *testing.T, rec *MockRecords) (*Store, *int) {
	t.Helper()
	b := bus.New()
	notified := new(int)
	b.Subscribe(func() { *notified++ })
	return New(rec, b, WithClock(func() time.Time { return fixedNow })), notified
}

func seedTasks() []task.Task {
	return []task.Task{
		{ID: "1", Title: "A", Status: task.StatusPending, Priority: task.PriorityLow, Date: "2025-01-01"},
		{ID: "2", Title: "B", Status: task.StatusDone, Priority: task.PriorityHigh, Date: "2025-01-03", Progress: 100},
		{ID: "3", Title: "C", Status: task.StatusInProgress, Priority: task.PriorityMedium, Date: "2025-01-05", Progress: 40},
	}
}

func countID(tasks []task.Task, id string) int {
	n := 0
	for _, t := range tasks {
		if t.ID == id {
			n++
		}
	}
	return n
}

func TestLoadAppliesDefaults(t *testing.T) {
	rec := newMockRecords(task.Task{ID: "legacy", Title: "old", Progress: 130})
	s, notified := newTestStore(t, rec)

	s.Load(context.Background(), true)

	require.Len(t, s.Tasks(), 1)
	assert.Equal(t, task.Task{
		ID:       "legacy",
		Title:    "old",
		Status:   task.StatusPending,
		Priority: task.PriorityMedium,
		Date:     "2025-01-02",
		Progress: 100,
	}, s.Tasks()[0])
	assert.Equal(t, 0, *notified, "loads do not announce")
}

func TestLoadFlags(t *testing.T) {
	for _, foreground := range []bool{true, false} {
		rec := newMockRecords(seedTasks()...)
		rec.hold()
		s, _ := newTestStore(t, rec)

		done := make(chan struct{})
		go func() {
			s.Load(context.Background(), foreground)
			close(done)
		}()
		<-rec.entered

		assert.Equal(t, foreground, s.Loading())
		assert.Equal(t, !foreground, s.Syncing())

		close(rec.release)
		<-done
		assert.False(t, s.Loading())
		assert.False(t, s.Syncing())
		assert.Len(t, s.Tasks(), 3)
	}
}

func TestLoadFailureResetsCollection(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)
	require.Len(t, s.Tasks(), 3)

	rec.listErr = errBoom
	s.Refresh(context.Background())

	assert.Empty(t, s.Tasks())
	assert.False(t, s.Syncing())
}

func TestAddIsOptimistic(t *testing.T) {
	rec := newMockRecords()
	rec.hold()
	s, notified := newTestStore(t, rec)

	type result struct {
		t   task.Task
		err error
	}
	done := make(chan result, 1)
	go func() {
		added, err := s.Add(context.Background(), task.Draft{Title: "New"})
		done <- result{added, err}
	}()

	id := <-rec.entered
	assert.Equal(t, 1, countID(s.Tasks(), id), "visible exactly once before the save resolves")
	assert.Equal(t, 0, *notified)

	close(rec.release)
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, id, r.t.ID)
	assert.Equal(t, []task.Task{r.t}, s.Tasks())
	assert.Equal(t, []task.Task{r.t}, rec.stored())
	assert.Equal(t, 1, *notified)
}

func TestAddRollsBackOnSaveFailure(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, notified := newTestStore(t, rec)
	s.Load(context.Background(), true)
	before := s.Tasks()

	rec.saveErr = errBoom
	_, err := s.Add(context.Background(), task.Draft{Title: "doomed"})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, before, s.Tasks())
	assert.Equal(t, 0, *notified)
}

func TestAddRejectsInvalidDraft(t *testing.T) {
	rec := newMockRecords()
	s, _ := newTestStore(t, rec)

	_, err := s.Add(context.Background(), task.Draft{Title: "  "})

	assert.True(t, kerrors.Is(err, task.ErrInvalidTask))
	assert.Empty(t, s.Tasks())
	assert.Empty(t, rec.callLog())
}

func TestAddRejectsDuplicateID(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)

	_, err := s.Add(context.Background(), task.Draft{ID: "1", Title: "dup"})

	assert.True(t, kerrors.Is(err, ErrTaskExists))
	assert.Len(t, s.Tasks(), 3)
}

func TestUpdateIsOptimistic(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, notified := newTestStore(t, rec)
	s.Load(context.Background(), true)
	rec.hold()

	edited := seedTasks()[0]
	edited.Title = "A, revised"
	errc := make(chan error, 1)
	go func() {
		_, err := s.Update(context.Background(), edited)
		errc <- err
	}()

	<-rec.entered
	got, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, "A, revised", got.Title)

	close(rec.release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, *notified)
	assert.Equal(t, edited, rec.stored()[0])
}

func TestUpdateRestoresSnapshotOnFailure(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, notified := newTestStore(t, rec)
	s.Load(context.Background(), true)
	before := s.Tasks()

	rec.saveErr = errBoom
	edited := seedTasks()[1]
	edited.Status = task.StatusPending
	_, err := s.Update(context.Background(), edited)

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, before, s.Tasks())
	assert.Equal(t, 0, *notified)
}

func TestUpdateUnknownID(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)

	_, err := s.Update(context.Background(), task.Task{
		ID: "404", Title: "ghost", Status: task.StatusPending, Priority: task.PriorityLow,
	})

	assert.True(t, kerrors.IsNotFound(err))
	assert.Equal(t, []string{"list"}, rec.callLog())
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)
	before := s.Tasks()

	edited := seedTasks()[0]
	edited.Title = ""
	_, err := s.Update(context.Background(), edited)

	assert.True(t, kerrors.Is(err, task.ErrInvalidTask))
	assert.Equal(t, before, s.Tasks())
	assert.Equal(t, []string{"list"}, rec.callLog())
}

func TestUpdateKeepsProgressOnStatusChange(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)

	edited := seedTasks()[2]
	edited.Status = task.StatusPending
	_, err := s.Update(context.Background(), edited)
	require.NoError(t, err)

	got, _ := s.Get("3")
	assert.Equal(t, 40, got.Progress)
}

func TestDeleteIsOptimisticAndRollsBack(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, notified := newTestStore(t, rec)
	s.Load(context.Background(), true)
	before := s.Tasks()

	rec.deleteErr = errBoom
	err := s.Delete(context.Background(), "2")

	require.ErrorIs(t, err, errBoom)
	assert.ElementsMatch(t, before, s.Tasks())
	assert.Equal(t, 1, countID(s.Tasks(), "2"))
	assert.Equal(t, 0, *notified)
}

func TestDelete(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, notified := newTestStore(t, rec)
	s.Load(context.Background(), true)

	require.NoError(t, s.Delete(context.Background(), "2"))

	assert.Equal(t, 0, countID(s.Tasks(), "2"))
	assert.Equal(t, 0, countID(rec.stored(), "2"))
	assert.Equal(t, 1, *notified)

	err := s.Delete(context.Background(), "2")
	assert.True(t, kerrors.IsNotFound(err))
}

func TestAddThenDeleteBeforeSaveResolves(t *testing.T) {
	rec := newMockRecords()
	rec.hold()
	s, _ := newTestStore(t, rec)
	ctx := context.Background()

	addErr := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, task.Draft{Title: "New"})
		addErr <- err
	}()
	id := <-rec.entered

	delErr := make(chan error, 1)
	go func() {
		delErr <- s.Delete(ctx, id)
	}()
	require.Eventually(t, func() bool {
		_, ok := s.Get(id)
		return !ok
	}, time.Second, time.Millisecond)

	close(rec.release)
	require.NoError(t, <-addErr)
	require.NoError(t, <-delErr)

	assert.Empty(t, s.Tasks())
	assert.Empty(t, rec.stored())
	assert.Equal(t, []string{"save:" + id, "delete:" + id}, rec.callLog())
}

func TestSameIDUpdatesPersistInOrder(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)
	rec.hold()

	first, second := seedTasks()[0], seedTasks()[0]
	first.Title, second.Title = "first edit", "second edit"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.Update(context.Background(), first)
		assert.NoError(t, err)
	}()
	<-rec.entered
	go func() {
		defer wg.Done()
		_, err := s.Update(context.Background(), second)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool {
		got, _ := s.Get("1")
		return got.Title == "second edit"
	}, time.Second, time.Millisecond)

	close(rec.release)
	wg.Wait()

	got, _ := s.Get("1")
	assert.Equal(t, "second edit", got.Title)
	assert.Equal(t, "second edit", rec.stored()[0].Title)
}

func TestUpdateQueuedBehindFailedAdd(t *testing.T) {
	rec := newMockRecords()
	rec.hold()
	rec.saveErr = errBoom
	s, notified := newTestStore(t, rec)
	ctx := context.Background()

	addErr := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, task.Draft{Title: "New"})
		addErr <- err
	}()
	id := <-rec.entered

	edited, ok := s.Get(id)
	require.True(t, ok)
	edited.Title = "edited"
	updErr := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, edited)
		updErr <- err
	}()
	require.Eventually(t, func() bool {
		got, _ := s.Get(id)
		return got.Title == "edited"
	}, time.Second, time.Millisecond)

	close(rec.release)
	require.ErrorIs(t, <-addErr, errBoom)
	assert.True(t, kerrors.IsNotFound(<-updErr))

	assert.Empty(t, s.Tasks())
	assert.Empty(t, rec.stored())
	assert.Equal(t, []string{"save:" + id}, rec.callLog())
	assert.Equal(t, 0, *notified)
}

func TestDeleteQueuedBehindFailedAdd(t *testing.T) {
	rec := newMockRecords()
	rec.hold()
	rec.saveErr = errBoom
	rec.deleteErr = errBoom
	s, notified := newTestStore(t, rec)
	ctx := context.Background()

	addErr := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, task.Draft{Title: "New"})
		addErr <- err
	}()
	id := <-rec.entered

	delErr := make(chan error, 1)
	go func() {
		delErr <- s.Delete(ctx, id)
	}()
	require.Eventually(t, func() bool {
		_, ok := s.Get(id)
		return !ok
	}, time.Second, time.Millisecond)

	close(rec.release)
	require.ErrorIs(t, <-addErr, errBoom)
	assert.True(t, kerrors.IsNotFound(<-delErr))

	assert.Empty(t, s.Tasks(), "a task that was never stored is not put back")
	assert.Empty(t, rec.stored())
	assert.Equal(t, []string{"save:" + id}, rec.callLog())
	assert.Equal(t, 0, *notified)
}

func TestUpdatesQueuedBehindFailedAddAllGiveUp(t *testing.T) {
	rec := newMockRecords()
	rec.hold()
	rec.saveErr = errBoom
	s, notified := newTestStore(t, rec)
	ctx := context.Background()

	addErr := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, task.Draft{Title: "New"})
		addErr <- err
	}()
	id := <-rec.entered

	cur, _ := s.Get(id)
	errs := make(chan error, 2)
	for _, title := range []string{"one", "two"} {
		edited := cur
		edited.Title = title
		go func() {
			_, err := s.Update(ctx, edited)
			errs <- err
		}()
		require.Eventually(t, func() bool {
			got, _ := s.Get(id)
			return got.Title == title
		}, time.Second, time.Millisecond)
	}

	close(rec.release)
	require.ErrorIs(t, <-addErr, errBoom)
	assert.True(t, kerrors.IsNotFound(<-errs))
	assert.True(t, kerrors.IsNotFound(<-errs))

	assert.Empty(t, s.Tasks())
	assert.Empty(t, rec.stored())
	assert.Equal(t, 0, *notified)
}

func TestUpdateClampsProgress(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	s, _ := newTestStore(t, rec)
	s.Load(context.Background(), true)

	edited := seedTasks()[2]
	edited.Progress = 150
	saved, err := s.Update(context.Background(), edited)
	require.NoError(t, err)

	assert.Equal(t, 100, saved.Progress)
	got, _ := s.Get("3")
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 100, rec.stored()[2].Progress)
}

func TestSubscriberCanReload(t *testing.T) {
	rec := newMockRecords(seedTasks()...)
	b := bus.New()
	s := New(rec, b, WithClock(func() time.Time { return fixedNow }))
	s.Load(context.Background(), true)

	var seen []int
	b.Subscribe(func() {
		s.Load(context.Background(), false)
		seen = append(seen, len(s.Tasks()))
	})

	_, err := s.Add(context.Background(), task.Draft{Title: "D"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(context.Background(), "1"))

	assert.Equal(t, []int{4, 3}, seen)
}
