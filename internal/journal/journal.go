// Package journal keeps a local record of every transaction the CLI
// submits. Saves are best-effort; a broken journal never blocks a
// submission.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Entry is one submitted transaction.
type Entry struct {
	Signature string
	Command   string
	Status    string
	Detail    string
	CreatedAt time.Time
}

type Journal struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS submissions (
			signature TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Journal{db: db, lock: flock.New(lockPath)}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) Save(entry Entry) error {
	if strings.TrimSpace(entry.Signature) == "" {
		return fmt.Errorf("save submission: missing signature")
	}
	locked, err := j.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock journal: timeout acquiring lock")
	}
	defer func() { _ = j.lock.Unlock() }()

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = j.db.Exec(`
		INSERT INTO submissions (signature, command, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			status=excluded.status,
			detail=excluded.detail
	`, entry.Signature, entry.Command, entry.Status, entry.Detail, created.Unix())
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT signature, command, status, detail, created_at
		FROM submissions ORDER BY created_at DESC, signature LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var createdUnix int64
		if err := rows.Scan(&e.Signature, &e.Command, &e.Status, &e.Detail, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		e.CreatedAt = time.Unix(createdUnix, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return entries, nil
}
