package store

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/omalloc/taskboard/api/task"
)

type mutationState int

const (
	stateApplying mutationState = iota
	stateConfirmed
	stateRolledBack
)

func (s mutationState) String() string {
	switch s {
	case stateApplying:
		return "applying"
	case stateConfirmed:
		return "confirmed"
	case stateRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// mutation tracks one optimistic change from its in-memory application to
// confirmation or rollback. The rollback data lives only while the change
// is in flight.
type mutation struct {
	op    string
	id    string
	state mutationState

	// snapshot is the whole collection before an update.
	snapshot []task.Task
	// removed is the task taken out by a delete, at index.
	removed *task.Task
	index   int

	// prev is the mutation this one is queued behind, if any.
	prev *mutation
	done chan struct{}
	// vanished is set on rollback when the task never reached the record
	// store. Mutations queued behind it must not persist anything.
	vanished bool
}

// begin applies fn to the collection under the lock and queues the new
// mutation behind any other in-flight mutation on the same id. If fn fails
// nothing is queued and the collection must be left untouched.
func (s *Store) begin(op, id string, fn func(m *mutation) error) (*mutation, error) {
	m := &mutation{op: op, id: id, state: stateApplying, done: make(chan struct{})}

	s.mu.Lock()
	if err := fn(m); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	m.prev = s.tails[id]
	s.tails[id] = m
	s.mu.Unlock()

	log.Debugf("%s %s: %s", m.op, m.id, m.state)
	return m, nil
}

// await blocks until every earlier mutation on the same id has settled, so
// record store calls for one id reach the store in application order.
func (m *mutation) await() {
	if m.prev != nil {
		<-m.prev.done
	}
}

// orphaned reports whether m was applied on top of a task whose creation was
// rolled back. Only valid after await.
func (m *mutation) orphaned() bool {
	return m.prev != nil && m.prev.vanished
}

// settle moves the mutation to its final state. On error rollback runs under
// the lock; on success confirm does.
func (s *Store) settle(m *mutation, err error, confirm, rollback func(m *mutation)) {
	s.mu.Lock()
	if err != nil {
		rollback(m)
		m.state = stateRolledBack
	} else {
		if confirm != nil {
			confirm(m)
		}
		m.state = stateConfirmed
	}
	m.snapshot = nil
	m.removed = nil
	m.prev = nil
	if s.tails[m.id] == m {
		delete(s.tails, m.id)
	}
	s.mu.Unlock()
	close(m.done)

	if err != nil {
		log.Warnf("%s %s: %s: %v", m.op, m.id, m.state, err)
		return
	}
	log.Debugf("%s %s: %s", m.op, m.id, m.state)
}
