package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/nutsdb/nutsdb"

	"github.com/omalloc/taskboard/api/task"
)

const bucketTasks = "tasks"

type nutsdbStore struct {
	db *nutsdb.DB
}

// NewNutsDBStore creates a new NutsDB-backed record store rooted at path.
func NewNutsDBStore(path string) (RecordStore, error) {
	opts := nutsdb.DefaultOptions
	opts.Dir = path
	db, err := nutsdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open nutsdb: %w", err)
	}

	// Ensure bucket exists
	if err := db.Update(func(tx *nutsdb.Tx) error {
		return tx.NewBucket(nutsdb.DataStructureBTree, bucketTasks)
	}); err != nil {
		if !errors.Is(err, nutsdb.ErrBucketAlreadyExist) {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &nutsdbStore{db: db}, nil
}

// List implements RecordStore.List. Records come back in key order.
func (s *nutsdbStore) List(_ context.Context) ([]task.Task, error) {
	var tasks []task.Task

	err := s.db.View(func(tx *nutsdb.Tx) error {
		_, values, err := tx.GetAll(bucketTasks)
		if err != nil {
			if errors.Is(err, nutsdb.ErrBucketEmpty) || errors.Is(err, nutsdb.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		tasks = make([]task.Task, 0, len(values))
		for _, v := range values {
			t, err := decodeTask(v)
			if err != nil {
				log.Warnf("skip malformed task record: %v", err)
				continue
			}
			tasks = append(tasks, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// Save implements RecordStore.Save.
func (s *nutsdbStore) Save(_ context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = task.NewID()
	}

	data, err := encodeTask(t)
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(bucketTasks, []byte(t.ID), data, 0)
	}); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Delete implements RecordStore.Delete.
func (s *nutsdbStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *nutsdb.Tx) error {
		err := tx.Delete(bucketTasks, []byte(id))
		if errors.Is(err, nutsdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the store.
func (s *nutsdbStore) Close() error {
	return s.db.Close()
}
