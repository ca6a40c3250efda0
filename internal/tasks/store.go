package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Task is one persisted deferred action.
type Task struct {
	ID      int64
	Name    string // handler name
	Payload string
	RunAt   time.Time
}

// Store persists pending tasks in an embedded SQLite database
// (modernc.org/sqlite driver, CGO-free) so deferred work survives restarts.
// Use ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the task database at path.
func OpenStore(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty task db path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	s := &Store{db: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			run_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_run_at ON tasks(run_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Add persists a task to run at runAt.
func (s *Store) Add(ctx context.Context, name, payload string, runAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(name, payload, run_at) VALUES(?, ?, ?)`,
		name, payload, runAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Due returns tasks whose run time is at or before now, oldest first.
func (s *Store) Due(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, payload, run_at FROM tasks WHERE run_at <= ? ORDER BY run_at ASC`,
		now.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Task
	for rows.Next() {
		var t Task
		var runAt int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Payload, &runAt); err != nil {
			return nil, err
		}
		t.RunAt = time.Unix(runAt, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Remove deletes a task by id.
func (s *Store) Remove(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// Pending counts tasks not yet executed.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
