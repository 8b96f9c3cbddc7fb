package scrub

import (
	"path/filepath"
	"time"

	"dirscrub/internal/cleanup"
	"dirscrub/internal/database"
	"dirscrub/internal/faults"
	"dirscrub/internal/logging"
	"dirscrub/internal/metrics"
)

// history writes a run to the scrub database. Write failures are logged
// and never fail the scrub.
type history struct {
	db     *database.ScrubDB
	logger *logging.Leveled
}

func newHistory(db *database.ScrubDB, logger *logging.Leveled) *history {
	return &history{db: db, logger: logger}
}

func (h *history) begin(run *database.RunRecord) {
	if h.db == nil {
		return
	}
	if err := h.db.BeginRun(run); err != nil {
		h.fail("Failed to record run start", err)
	}
}

func (h *history) finish(run *database.RunRecord, res cleanup.Result) {
	if h.db == nil {
		return
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = database.StatusOK
	run.Removed = res.Removed
	run.AlreadyGone = res.AlreadyGone
	run.Failed = res.Failed
	run.Remediated = res.Remediated
	run.BytesFreed = res.BytesFreed
	run.PeakInFlight = res.PeakInFlight
	if res.FirstErr != nil {
		run.Status = database.StatusFailed
		run.FirstError = res.FirstErr.Error()
	}

	entries := make([]database.EntryRecord, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		entries = append(entries, entryRecord(run.ID, now, o))
	}
	if err := h.db.RecordEntries(entries); err != nil {
		h.fail("Failed to record entries", err)
	}
	if err := h.db.FinishRun(run); err != nil {
		h.fail("Failed to record run result", err)
	}
}

func (h *history) fail(msg string, err error) {
	metrics.ErrorsTotal.Inc()
	h.logger.Error(msg, "error", err)
}

func entryRecord(runID string, ts time.Time, o cleanup.Outcome) database.EntryRecord {
	e := database.EntryRecord{
		RunID:      runID,
		Timestamp:  ts,
		Path:       o.Match.Path,
		FileName:   filepath.Base(o.Match.Path),
		ObjectType: "file",
		Depth:      o.Match.Depth,
		Outcome:    o.Status.String(),
		Remediated: o.Remediated,
		Fallback:   o.Fallback,
		Size:       o.Bytes,
	}
	if o.Match.IsDir {
		e.ObjectType = "directory"
	}
	if o.Err != nil {
		e.ErrorKind = faults.Label(faults.KindOf(o.Err))
		e.ErrorMessage = o.Err.Error()
	}
	return e
}
