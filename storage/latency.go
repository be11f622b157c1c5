package storage

import (
	"context"
	"time"

	"github.com/omalloc/taskboard/api/task"
)

type latencyStore struct {
	RecordStore
	delay time.Duration
}

// WithLatency delays every call on rs by d. It stands in for the round trip
// of a remote record store.
func WithLatency(rs RecordStore, d time.Duration) RecordStore {
	if d <= 0 {
		return rs
	}
	return &latencyStore{RecordStore: rs, delay: d}
}

func (s *latencyStore) wait(ctx context.Context) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *latencyStore) List(ctx context.Context) ([]task.Task, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.RecordStore.List(ctx)
}

func (s *latencyStore) Save(ctx context.Context, t task.Task) (task.Task, error) {
	if err := s.wait(ctx); err != nil {
		return task.Task{}, err
	}
	return s.RecordStore.Save(ctx, t)
}

func (s *latencyStore) Delete(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.RecordStore.Delete(ctx, id)
}
