package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// ScrubDB manages the SQLite database for scrub history
type ScrubDB struct {
	db *sql.DB
}

// RunRecord represents one scrub invocation
type RunRecord struct {
	ID           string
	Root         string
	Target       string
	Recursive    bool
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Matches      int
	Removed      int
	AlreadyGone  int
	Failed       int
	Remediated   int
	BytesFreed   int64
	PeakInFlight int
	FirstError   string
}

// EntryRecord represents the outcome for one matched entry
type EntryRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Path         string
	FileName     string
	ObjectType   string // file or directory
	Depth        int
	Outcome      string // removed, already_gone, failed
	Remediated   bool
	Fallback     bool
	Size         int64
	ErrorKind    string
	ErrorMessage string
}

// NewScrubDB creates a new database connection and initializes schema
func NewScrubDB(dbPath string) (*ScrubDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	// _busy_timeout applies to every pooled connection
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Test connection by executing a simple query instead of Ping()
	// This ensures the database file is created if it doesn't exist
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	sdb := &ScrubDB{db: db}
	if err = sdb.initSchema(); err != nil {
		return nil, err
	}

	return sdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *ScrubDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		target TEXT NOT NULL,
		recursive INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		matches INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		already_gone INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		remediated INTEGER NOT NULL DEFAULT 0,
		bytes_freed INTEGER NOT NULL DEFAULT 0,
		peak_inflight INTEGER NOT NULL DEFAULT 0,
		first_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);

	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		object_type TEXT NOT NULL,
		depth INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		remediated INTEGER NOT NULL DEFAULT 0,
		fallback INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_run_id ON entries(run_id);
	CREATE INDEX IF NOT EXISTS idx_entries_outcome ON entries(outcome);
	CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path);
	CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// BeginRun inserts a run in the running state
func (d *ScrubDB) BeginRun(run *RunRecord) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := d.db.Exec(`
	INSERT INTO runs (id, root, target, recursive, started_at, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.Target, run.Recursive, run.StartedAt, run.Status)
	return err
}

// FinishRun stores the final counts and status of a run
func (d *ScrubDB) FinishRun(run *RunRecord) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	_, err := d.db.Exec(`
	UPDATE runs SET
		finished_at = ?, status = ?, matches = ?, removed = ?, already_gone = ?,
		failed = ?, remediated = ?, bytes_freed = ?, peak_inflight = ?, first_error = ?
	WHERE id = ?
	`,
		*run.FinishedAt, run.Status, run.Matches, run.Removed, run.AlreadyGone,
		run.Failed, run.Remediated, run.BytesFreed, run.PeakInFlight, nullString(run.FirstError),
		run.ID,
	)
	return err
}

const insertEntry = `
	INSERT INTO entries (
		run_id, timestamp, path, file_name, object_type, depth, outcome,
		remediated, fallback, size, error_kind, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

// RecordEntry inserts a single entry outcome
func (d *ScrubDB) RecordEntry(e EntryRecord) error {
	_, err := d.db.Exec(insertEntry, entryArgs(e)...)
	return err
}

// RecordEntries inserts many entry outcomes in one transaction
func (d *ScrubDB) RecordEntries(entries []EntryRecord) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertEntry)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(entryArgs(e)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

func entryArgs(e EntryRecord) []interface{} {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	name := e.FileName
	if name == "" {
		name = filepath.Base(e.Path)
	}
	return []interface{}{
		e.RunID, ts, e.Path, name, e.ObjectType, e.Depth, e.Outcome,
		e.Remediated, e.Fallback, e.Size, nullString(e.ErrorKind), nullString(e.ErrorMessage),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database connection
func (d *ScrubDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *ScrubDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *ScrubDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var runs, entries int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&entries); err != nil {
		return nil, err
	}
	stats["total_runs"] = runs
	stats["total_entries"] = entries

	// Database size
	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	return stats, nil
}
