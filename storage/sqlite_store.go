package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omalloc/taskboard/api/task"
)

const sqliteFile = "tasks.db"

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed record store. The database file
// lives under dir.
func NewSQLiteStore(dir string) (RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, sqliteFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// List implements RecordStore.List. Records come back in insertion order.
func (s *sqliteStore) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, priority, date, progress
		FROM tasks ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var (
			t                task.Task
			status, priority string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.Date, &t.Progress); err != nil {
			return nil, err
		}
		t.Status = task.Status(status)
		t.Priority = task.Priority(priority)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Save implements RecordStore.Save.
func (s *sqliteStore) Save(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = task.NewID()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, date, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			date = excluded.date,
			progress = excluded.progress
	`, t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.Date, t.Progress)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Delete implements RecordStore.Delete.
func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
