package database

import (
	"database/sql"
	"time"
)

const runColumns = `
	id, root, target, recursive, started_at, finished_at, status,
	matches, removed, already_gone, failed, remediated, bytes_freed,
	peak_inflight, first_error
	`

const entryColumns = `
	id, run_id, timestamp, path, file_name, object_type, depth, outcome,
	remediated, fallback, size, error_kind, error_message
	`

// GetRecentRuns returns the N most recent runs
func (d *ScrubDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	return d.queryRuns(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
}

// GetRun returns a single run, or sql.ErrNoRows
func (d *ScrubDB) GetRun(id string) (*RunRecord, error) {
	runs, err := d.queryRuns(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &runs[0], nil
}

// GetRunEntries returns every entry of a run, deepest first
func (d *ScrubDB) GetRunEntries(runID string) ([]EntryRecord, error) {
	return d.queryEntries(`
	SELECT `+entryColumns+`
	FROM entries
	WHERE run_id = ?
	ORDER BY depth DESC, id ASC
	`, runID)
}

// GetFailures returns the N most recent failed entries
func (d *ScrubDB) GetFailures(limit int) ([]EntryRecord, error) {
	return d.queryEntries(`
	SELECT `+entryColumns+`
	FROM entries
	WHERE outcome = 'failed'
	ORDER BY timestamp DESC
	LIMIT ?
	`, limit)
}

// GetEntriesByPath returns entries matching a LIKE path pattern
func (d *ScrubDB) GetEntriesByPath(pathPattern string) ([]EntryRecord, error) {
	return d.queryEntries(`
	SELECT `+entryColumns+`
	FROM entries
	WHERE path LIKE ?
	ORDER BY timestamp DESC
	`, pathPattern)
}

// ScrubStats holds aggregated statistics
type ScrubStats struct {
	TotalRuns        int
	FailedRuns       int
	TotalRemoved     int
	TotalAlreadyGone int
	TotalFailed      int
	TotalRemediated  int
	TotalBytesFreed  int64
	FailuresByKind   map[string]int
	StartDate        time.Time
	EndDate          time.Time
}

// GetStats returns statistics for runs started in the last N days
func (d *ScrubDB) GetStats(days int) (*ScrubStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &ScrubStats{
		StartDate:      since,
		EndDate:        now,
		FailuresByKind: make(map[string]int),
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COALESCE(SUM(removed), 0),
			COALESCE(SUM(already_gone), 0),
			COALESCE(SUM(failed), 0),
			COALESCE(SUM(remediated), 0),
			COALESCE(SUM(bytes_freed), 0)
		FROM runs
		WHERE started_at >= ?
	`, since).Scan(
		&stats.TotalRuns, &stats.FailedRuns, &stats.TotalRemoved,
		&stats.TotalAlreadyGone, &stats.TotalFailed, &stats.TotalRemediated,
		&stats.TotalBytesFreed,
	)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`
	SELECT COALESCE(e.error_kind, 'unknown'), COUNT(*)
	FROM entries e JOIN runs r ON r.id = e.run_id
	WHERE e.outcome = 'failed' AND r.started_at >= ?
	GROUP BY e.error_kind
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.FailuresByKind[kind] = count
	}

	return stats, rows.Err()
}

// DeleteOldRuns removes runs (and their entries) older than specified days
func (d *ScrubDB) DeleteOldRuns(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`
		DELETE FROM entries WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		tx.Rollback()
		return 0, err
	}
	result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryRuns is a helper function to execute queries and scan runs
func (d *ScrubDB) queryRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		var firstErr sql.NullString

		err := rows.Scan(
			&r.ID, &r.Root, &r.Target, &r.Recursive, &r.StartedAt, &finished, &r.Status,
			&r.Matches, &r.Removed, &r.AlreadyGone, &r.Failed, &r.Remediated, &r.BytesFreed,
			&r.PeakInFlight, &firstErr,
		)
		if err != nil {
			return nil, err
		}

		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.FirstError = firstErr.String

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// queryEntries is a helper function to execute queries and scan entries
func (d *ScrubDB) queryEntries(query string, args ...interface{}) ([]EntryRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryRecord
	for rows.Next() {
		var e EntryRecord
		var fileName, errKind, errMsg sql.NullString

		err := rows.Scan(
			&e.ID, &e.RunID, &e.Timestamp, &e.Path, &fileName, &e.ObjectType, &e.Depth,
			&e.Outcome, &e.Remediated, &e.Fallback, &e.Size, &errKind, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		e.FileName = fileName.String
		e.ErrorKind = errKind.String
		e.ErrorMessage = errMsg.String

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
