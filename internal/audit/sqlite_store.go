package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is an optional persistent mirror of the audit trail. The core
// Trail works entirely in memory; this is purely additive snapshotting for
// deployments that want audit history to survive a restart.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed audit snapshot store.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id               TEXT PRIMARY KEY,
		task_description TEXT NOT NULL,
		risk             TEXT NOT NULL,
		urgency          TEXT NOT NULL,
		action           TEXT NOT NULL,
		confidence       REAL NOT NULL,
		reason           TEXT,
		selected_worker  TEXT,
		selection_method TEXT,
		escalated_from   TEXT,
		outcome_success  INTEGER NOT NULL,
		created_at       TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append persists an Entry snapshot. Errors here never propagate back into
// the Trail that owns the in-memory queue.
func (s *SQLiteStore) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	success := 0
	if e.OutcomeSuccess {
		success = 1
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO audit_entries
			(id, task_description, risk, urgency, action, confidence, reason,
			 selected_worker, selection_method, escalated_from, outcome_success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskDescription, string(e.Risk), string(e.Urgency), string(e.Action),
		e.Confidence, e.Reason, e.SelectedWorker, string(e.SelectionMethod),
		string(e.EscalatedFrom), success, e.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
