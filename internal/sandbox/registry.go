package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Status is the lifecycle state of a recorded sandbox.
type Status string

const (
	StatusCreated   Status = "created"
	StatusReady     Status = "ready"
	StatusUnhealthy Status = "unhealthy"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
)

// ErrNotFound is returned when a sandbox id is not in the registry.
var ErrNotFound = errors.New("sandbox not found")

// Record is a sandbox created by this process or an earlier one.
type Record struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	PreviewURL  string `json:"preview_url,omitempty"`
	TerminalURL string `json:"terminal_url,omitempty"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Registry persists sandbox records in SQLite so sandboxes outlive the process
// that created them and can be listed or deleted later.
// All methods are no-ops on a nil *Registry.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens (or creates) the registry database at path.
func OpenRegistry(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("registry: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sandboxes (
		id           TEXT PRIMARY KEY,
		query        TEXT NOT NULL,
		preview_url  TEXT NOT NULL DEFAULT '',
		terminal_url TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: init schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the database.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// Add records a newly created sandbox.
func (r *Registry) Add(ctx context.Context, id, query string) error {
	if r == nil {
		return nil
	}
	ts := now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sandboxes (id, query, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET query = excluded.query, status = excluded.status, updated_at = excluded.updated_at`,
		id, query, string(StatusCreated), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("registry: add %s: %w", id, err)
	}
	return nil
}

// SetPreview stores the resolved URLs and the new status for id.
func (r *Registry) SetPreview(ctx context.Context, id, previewURL, terminalURL string, status Status) error {
	if r == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sandboxes SET preview_url = ?, terminal_url = ?, status = ?, updated_at = ? WHERE id = ?`,
		previewURL, terminalURL, string(status), now(), id,
	)
	if err != nil {
		return fmt.Errorf("registry: update %s: %w", id, err)
	}
	return nil
}

// SetStatus changes only the status of id.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if r == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sandboxes SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now(), id,
	)
	if err != nil {
		return fmt.Errorf("registry: update %s: %w", id, err)
	}
	return nil
}

// Get returns the record for id or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	if r == nil {
		return nil, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT id, query, preview_url, terminal_url, status, created_at, updated_at
		 FROM sandboxes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registry: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first. Deleted sandboxes are included only when all is set.
func (r *Registry) List(ctx context.Context, all bool) ([]Record, error) {
	if r == nil {
		return nil, nil
	}
	q := `SELECT id, query, preview_url, terminal_url, status, created_at, updated_at FROM sandboxes`
	var args []any
	if !all {
		q += ` WHERE status != ?`
		args = append(args, string(StatusDeleted))
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("registry: scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var status string
	if err := s.Scan(&rec.ID, &rec.Query, &rec.PreviewURL, &rec.TerminalURL, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}
