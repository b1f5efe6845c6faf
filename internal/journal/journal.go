// Package journal records provisioning step outcomes in a local SQLite
// database. It exists for post-mortem inspection of image builds; every
// operation is best-effort and never affects the provisioning run.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Step status values.
const (
	StatusStarted = "started"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Journal appends step records to provision.db under the data dir.
// A nil *Journal is valid and drops all records.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded step outcome.
type Entry struct {
	ID        int64
	Step      string
	Status    string
	Detail    string
	CreatedAt time.Time
}

// Open creates or opens the journal database. WAL mode so a crashed
// run leaves readable history.
func Open(dataDir string) (*Journal, error) {
	dbPath := filepath.Join(dataDir, "provision.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create steps table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends a step record. Failures are logged and swallowed.
func (j *Journal) Record(step, status, detail string) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		"INSERT INTO steps (step, status, detail) VALUES (?, ?, ?)",
		step, status, detail,
	)
	if err != nil {
		log.Printf("[journal] WARNING: failed to record %s/%s: %v", step, status, err)
	}
}

// Entries returns all recorded steps in insertion order.
func (j *Journal) Entries() ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query("SELECT id, step, status, COALESCE(detail, ''), created_at FROM steps ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Step, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
