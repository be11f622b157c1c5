package storage

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/omalloc/taskboard/api/task"
)

// record is the on-disk shape of a task. Fields are keyed by small integers
// so stored values stay compact and survive field renames.
type record struct {
	ID          string `cbor:"1,keyasint"`
	Title       string `cbor:"2,keyasint"`
	Description string `cbor:"3,keyasint,omitempty"`
	Status      string `cbor:"4,keyasint,omitempty"`
	Priority    string `cbor:"5,keyasint,omitempty"`
	Date        string `cbor:"6,keyasint,omitempty"`
	Progress    int    `cbor:"7,keyasint,omitempty"`
}

func encodeTask(t task.Task) ([]byte, error) {
	return cbor.Marshal(record{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Date:        t.Date,
		Progress:    t.Progress,
	})
}

func decodeTask(data []byte) (task.Task, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return task.Task{}, err
	}
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		Priority:    task.Priority(r.Priority),
		Date:        r.Date,
		Progress:    r.Progress,
	}, nil
}
