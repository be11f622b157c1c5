package storage

import (
	"context"

	"github.com/omalloc/taskboard/api/task"
)

// RecordStore is the durable side of the task collection.
type RecordStore interface {
	// List returns every stored task.
	List(ctx context.Context) ([]task.Task, error)

	// Save upserts t by id and returns the stored record. A record without
	// an id is assigned a fresh one.
	Save(ctx context.Context, t task.Task) (task.Task, error)

	// Delete removes the record with the given id. Deleting an absent id
	// is not an error.
	Delete(ctx context.Context, id string) error

	// Close closes the store.
	Close() error
}
