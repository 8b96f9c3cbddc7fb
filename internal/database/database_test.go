package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *ScrubDB {
	t.Helper()
	db, err := NewScrubDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func seedRun(t *testing.T, db *ScrubDB, id string, started time.Time, entries ...EntryRecord) *RunRecord {
	t.Helper()
	run := &RunRecord{
		ID:        id,
		Root:      "/srv/project",
		Target:    "node_modules",
		Recursive: true,
		StartedAt: started,
	}
	if err := db.BeginRun(run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	for i := range entries {
		entries[i].RunID = id
	}
	if err := db.RecordEntries(entries); err != nil {
		t.Fatalf("RecordEntries: %v", err)
	}

	run.Status = StatusOK
	run.Matches = len(entries)
	for _, e := range entries {
		switch e.Outcome {
		case "removed":
			run.Removed++
			run.BytesFreed += e.Size
		case "already_gone":
			run.AlreadyGone++
		case "failed":
			run.Failed++
			run.Status = StatusFailed
			if run.FirstError == "" {
				run.FirstError = e.ErrorMessage
			}
		}
		if e.Remediated {
			run.Remediated++
		}
	}
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	return run
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	db, err := NewScrubDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaCreation verifies all tables and indexes are created
func TestSchemaCreation(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"runs", "entries", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}

	expectedIndexes := []string{
		"idx_runs_started_at",
		"idx_runs_root",
		"idx_entries_run_id",
		"idx_entries_outcome",
		"idx_entries_path",
		"idx_entries_timestamp",
	}
	for _, indexName := range expectedIndexes {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", indexName).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", indexName, err)
		}
	}

	var version int
	if err := db.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
}

// TestRunLifecycle verifies BeginRun, RecordEntries and FinishRun round trip
func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	started := time.Now().Add(-time.Minute)

	run := seedRun(t, db, "run-1", started,
		EntryRecord{Path: "/srv/project/a/node_modules", ObjectType: "directory", Depth: 2, Outcome: "removed", Size: 4096},
		EntryRecord{Path: "/srv/project/node_modules", ObjectType: "directory", Depth: 1, Outcome: "removed", Size: 100, Remediated: true, Fallback: true},
		EntryRecord{Path: "/srv/project/b/node_modules", ObjectType: "file", Depth: 2, Outcome: "failed",
			ErrorKind: "permission_denied", ErrorMessage: "permission denied: /srv/project/b/node_modules"},
	)

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", got.Status, StatusFailed)
	}
	if got.Removed != 2 || got.Failed != 1 || got.Remediated != 1 || got.Matches != 3 {
		t.Errorf("counts = %+v", got)
	}
	if got.BytesFreed != run.BytesFreed {
		t.Errorf("BytesFreed = %d, want %d", got.BytesFreed, run.BytesFreed)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
	if !got.Recursive {
		t.Error("Recursive should round trip")
	}
	if got.FirstError == "" {
		t.Error("FirstError should be stored")
	}

	entries, err := db.GetRunEntries("run-1")
	if err != nil {
		t.Fatalf("GetRunEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Depth != 2 || entries[2].Depth != 1 {
		t.Errorf("entries not ordered deepest first: %+v", entries)
	}
	if entries[2].FileName != "node_modules" {
		t.Errorf("FileName = %q", entries[2].FileName)
	}
	if !entries[2].Remediated || !entries[2].Fallback {
		t.Error("Remediated/Fallback flags should round trip")
	}
}

// TestGetRunMissing verifies a missing run yields sql.ErrNoRows
func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetRun("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRun(nope) = %v, want sql.ErrNoRows", err)
	}
}

// TestQueryMethods covers the list queries
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	seedRun(t, db, "old", now.Add(-2*time.Hour),
		EntryRecord{Path: "/srv/project/node_modules", ObjectType: "directory", Depth: 1, Outcome: "removed"},
	)
	seedRun(t, db, "new", now.Add(-time.Hour),
		EntryRecord{Path: "/srv/project/x/node_modules", ObjectType: "directory", Depth: 2, Outcome: "failed", ErrorKind: "io"},
		EntryRecord{Path: "/srv/project/node_modules", ObjectType: "directory", Depth: 1, Outcome: "already_gone"},
	)

	runs, err := db.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("GetRecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" {
		t.Errorf("GetRecentRuns order wrong: %+v", runs)
	}

	failures, err := db.GetFailures(10)
	if err != nil {
		t.Fatalf("GetFailures: %v", err)
	}
	if len(failures) != 1 || failures[0].ErrorKind != "io" {
		t.Errorf("GetFailures = %+v", failures)
	}

	byPath, err := db.GetEntriesByPath("%/x/%")
	if err != nil {
		t.Fatalf("GetEntriesByPath: %v", err)
	}
	if len(byPath) != 1 {
		t.Errorf("GetEntriesByPath returned %d entries, want 1", len(byPath))
	}

	stats, err := db.GetStats(7)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalRuns != 2 || stats.FailedRuns != 1 {
		t.Errorf("runs = %d failed = %d", stats.TotalRuns, stats.FailedRuns)
	}
	if stats.TotalRemoved != 1 || stats.TotalAlreadyGone != 1 || stats.TotalFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.FailuresByKind["io"] != 1 {
		t.Errorf("FailuresByKind = %v", stats.FailuresByKind)
	}
}

// TestDeleteOldRuns verifies pruning removes runs and their entries
func TestDeleteOldRuns(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	seedRun(t, db, "ancient", now.AddDate(0, 0, -40),
		EntryRecord{Path: "/a/node_modules", ObjectType: "directory", Depth: 1, Outcome: "removed"},
	)
	seedRun(t, db, "recent", now,
		EntryRecord{Path: "/b/node_modules", ObjectType: "directory", Depth: 1, Outcome: "removed"},
	)

	deleted, err := db.DeleteOldRuns(30)
	if err != nil {
		t.Fatalf("DeleteOldRuns: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := db.GetRunEntries("ancient")
	if err != nil {
		t.Fatalf("GetRunEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries of pruned run survive: %d", len(entries))
	}
	if _, err := db.GetRun("recent"); err != nil {
		t.Errorf("recent run pruned: %v", err)
	}
}

// TestConcurrentReadWrite verifies readers and a writer can share the database
func TestConcurrentReadWrite(t *testing.T) {
	db := openTestDB(t)
	run := &RunRecord{ID: "busy", Root: "/r", Target: "t", StartedAt: time.Now()}
	if err := db.BeginRun(run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 60)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := db.RecordEntry(EntryRecord{
				RunID: "busy", Path: fmt.Sprintf("/r/%d/t", i), ObjectType: "file", Depth: 2, Outcome: "removed",
			}); err != nil {
				errs <- err
			}
		}
	}()

	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := db.GetRunEntries("busy"); err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access error: %v", err)
	}

	entries, err := db.GetRunEntries("busy")
	if err != nil {
		t.Fatalf("GetRunEntries: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("Expected 50 entries, got %d", len(entries))
	}
}

// TestDatabaseStats verifies the housekeeping helpers
func TestDatabaseStats(t *testing.T) {
	db := openTestDB(t)
	seedRun(t, db, "one", time.Now(),
		EntryRecord{Path: "/r/t", ObjectType: "file", Depth: 1, Outcome: "removed"},
	)

	stats, err := db.GetDatabaseStats()
	if err != nil {
		t.Fatalf("GetDatabaseStats: %v", err)
	}
	if stats["total_runs"].(int64) != 1 || stats["total_entries"].(int64) != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats["database_size_bytes"].(int64) <= 0 {
		t.Errorf("database size should be positive")
	}

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum: %v", err)
	}
}

// TestDatabaseErrorHandling verifies an unusable path is reported
func TestDatabaseErrorHandling(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Parent "directory" is a regular file, so the database cannot be created
	if _, err := NewScrubDB(filepath.Join(blocker, "history.db")); err == nil {
		t.Error("Expected error for database under a regular file")
	}
}
