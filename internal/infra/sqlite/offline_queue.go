package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mathfly-quiz-service/internal/domain"
)

const createQueueTable = `
CREATE TABLE IF NOT EXISTS offline_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	results    TEXT NOT NULL,
	queued_at  DATETIME NOT NULL,
	synced     INTEGER NOT NULL DEFAULT 0
);`

// OfflineQueue is an append-only local log of results that failed to persist.
// Rows are never deleted; replay flips the synced flag.
type OfflineQueue struct {
	db *sql.DB
}

// Open creates (if needed) and opens the queue database at path.
func Open(path string) (*OfflineQueue, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open offline queue: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Minute)

	// WAL keeps appends durable without blocking readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(createQueueTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create offline queue table: %w", err)
	}
	return &OfflineQueue{db: db}, nil
}

func (q *OfflineQueue) Close() error {
	return q.db.Close()
}

func (q *OfflineQueue) Enqueue(ctx context.Context, entry domain.PendingResult) error {
	raw, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO offline_results (user_id, results, queued_at, synced) VALUES (?, ?, ?, 0)`,
		entry.UserID, string(raw), entry.QueuedAt.UTC())
	if err != nil {
		return fmt.Errorf("append offline result: %w", err)
	}
	return nil
}

// Pending returns unsynced entries in insertion order.
func (q *OfflineQueue) Pending(ctx context.Context) ([]domain.PendingResult, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, results, queued_at FROM offline_results WHERE synced = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query offline results: %w", err)
	}
	defer rows.Close()

	var entries []domain.PendingResult
	for rows.Next() {
		var e domain.PendingResult
		var raw string
		if err := rows.Scan(&e.ID, &e.UserID, &raw, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan offline result: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Results); err != nil {
			return nil, fmt.Errorf("decode offline result %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *OfflineQueue) MarkSynced(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `UPDATE offline_results SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark offline result %d synced: %w", id, err)
	}
	return nil
}
