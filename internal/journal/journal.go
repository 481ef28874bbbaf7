// Package journal keeps an append-only sqlite log of focus-change and daemon
// lifecycle events. It is optional; the daemon runs without it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Kind string

const (
	KindFocus Kind = "focus_change"
	KindStart Kind = "daemon_start"
	KindStop  Kind = "daemon_stop"
)

type Entry struct {
	ID        int64
	Timestamp time.Time
	Kind      Kind
	Category  string
	Title     string
	Class     string
}

type Journal struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

const createEntriesTableSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	kind TEXT NOT NULL,
	category TEXT,
	title TEXT,
	class TEXT
);
CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries (timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries (kind);
`

// Open creates or opens the journal database, creating parent directories as
// needed.
func Open(ctx context.Context, path string, logger *log.Logger) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// A single writer connection keeps sqlite happy.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEntriesTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries table: %w", err)
	}
	logger.Printf("Journal database ready at %s", path)
	return &Journal{db: db, path: path, logger: logger}, nil
}

func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (timestamp, kind, category, title, class) VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp, e.Kind, e.Category, e.Title, e.Class)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get journal entry id: %w", err)
	}
	return id, nil
}

// Entries returns entries within [start, end], optionally restricted to the
// given kinds, ordered by timestamp.
func (j *Journal) Entries(ctx context.Context, start, end time.Time, kinds ...Kind) ([]Entry, error) {
	query := `SELECT id, timestamp, kind, category, title, class
	          FROM entries
	          WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{start, end}

	if len(kinds) > 0 {
		placeholders := strings.Repeat("?,", len(kinds)-1) + "?"
		query += fmt.Sprintf(" AND kind IN (%s)", placeholders)
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += " ORDER BY timestamp ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var category, title, class sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &category, &title, &class); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Category = category.String
		e.Title = title.String
		e.Class = class.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
