// Package history keeps a local SQLite log of print jobs.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

// Entry is one recorded print attempt.
type Entry struct {
	ID        uuid.UUID
	PrintedAt time.Time
	Source    string // file path, URL or "text"
	Device    string
	Width     int
	Height    int
	Dither    string
	Intensity int
	Duration  time.Duration
	Err       string // empty when the print succeeded
}

// OK reports whether the print succeeded.
func (e Entry) OK() bool {
	return e.Err == ""
}

// Store is a print history backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: initialise %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e, assigning an ID and timestamp when they are unset, and
// returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.PrintedAt.IsZero() {
		e.PrintedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO print (id, printed_at, source, device, width, height, dither, intensity, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.PrintedAt.UnixMilli(), e.Source, e.Device, e.Width, e.Height,
		e.Dither, e.Intensity, e.Duration.Milliseconds(), e.Err)
	if err != nil {
		return Entry{}, fmt.Errorf("history: record: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, printed_at, source, device, width, height, dither, intensity, duration_ms, error
		FROM print
		ORDER BY printed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			at, dur int64
		)
		if err := rows.Scan(&id, &at, &e.Source, &e.Device, &e.Width, &e.Height, &e.Dither, &e.Intensity, &dur, &e.Err); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("history: bad id %q: %w", id, err)
		}
		e.PrintedAt = time.UnixMilli(at)
		e.Duration = time.Duration(dur) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate: %w", err)
	}
	return out, nil
}
