// Package viewprefs provides persistent storage for per-process view
// preferences.
//
// Preferences such as the chart span and the selected metrics are stored keyed
// by process id so that reopening a process restores the last view.
//
// Storage is backed by the shared SQLite database at
// ~/.config/sirius/sirius.db (table view_prefs).
package viewprefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/sirius/internal/database"
)

// Repository defines the persistence interface for view preferences.
type Repository interface {
	// Get returns preferences for a process, or nil if not found.
	Get(processID string) (*ViewPrefs, error)

	// Save upserts preferences for a process.
	Save(prefs *ViewPrefs) error

	// Close releases database resources.
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the repository at the default database path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS view_prefs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			process_id TEXT NOT NULL UNIQUE,
			span_ms    INTEGER NOT NULL DEFAULT 0,
			metrics    TEXT NOT NULL DEFAULT '[]',
			log_filter TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("viewprefs: migration failed: %w", err)
	}
	return nil
}

// Get returns preferences for a process, or nil if not found.
func (r *SQLiteRepository) Get(processID string) (*ViewPrefs, error) {
	row := r.db.QueryRow(`
		SELECT id, process_id, span_ms, metrics, log_filter, updated_at
		FROM view_prefs WHERE process_id = ?`,
		processID)

	var prefs ViewPrefs
	var spanMS int64
	var metricsJSON, updatedStr string
	err := row.Scan(&prefs.ID, &prefs.ProcessID, &spanMS, &metricsJSON, &prefs.LogFilter, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("viewprefs: query failed: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &prefs.Metrics); err != nil {
		return nil, fmt.Errorf("viewprefs: corrupt metrics for %s: %w", processID, err)
	}
	prefs.Span = time.Duration(spanMS) * time.Millisecond
	prefs.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return &prefs, nil
}

// Save upserts preferences for a process.
func (r *SQLiteRepository) Save(prefs *ViewPrefs) error {
	prefs.UpdatedAt = time.Now().UTC()

	metrics := prefs.Metrics
	if metrics == nil {
		metrics = []string{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("viewprefs: failed to encode metrics: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO view_prefs (process_id, span_ms, metrics, log_filter, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO UPDATE SET
			span_ms = excluded.span_ms,
			metrics = excluded.metrics,
			log_filter = excluded.log_filter,
			updated_at = excluded.updated_at`,
		prefs.ProcessID, prefs.Span.Milliseconds(), string(metricsJSON), prefs.LogFilter,
		prefs.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("viewprefs: upsert failed: %w", err)
	}

	if prefs.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			prefs.ID = id
		}
	}
	return nil
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
