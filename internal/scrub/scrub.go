// Package scrub is the entry point for one scrub: it checks the request,
// discovers matches, and deletes them layer by layer, deepest first.
package scrub

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dirscrub/internal/cleanup"
	"dirscrub/internal/config"
	"dirscrub/internal/database"
	"dirscrub/internal/disk"
	"dirscrub/internal/faults"
	"dirscrub/internal/filelock"
	"dirscrub/internal/fsops"
	"dirscrub/internal/limiter"
	"dirscrub/internal/logging"
	"dirscrub/internal/metrics"
	"dirscrub/internal/remediate"
	"dirscrub/internal/safety"
	"dirscrub/internal/scan"
	"dirscrub/internal/scheduler"
	"dirscrub/internal/workpool"
)

// Run results recorded in metrics
const (
	resultOK       = "ok"
	resultFailed   = "failed"
	resultRejected = "rejected"
)

// Options describe one scrub request
type Options struct {
	Root      string
	Target    string
	Recursive bool

	Config   *config.Config   // nil means config.Default()
	Logger   *logging.Leveled // nil discards log output
	Progress func(line string)

	// Deleter and Remediator replace the filesystem primitives.
	// Remediation stays off when the config disables it.
	Deleter    fsops.Deleter
	Remediator remediate.Remediator

	DB      *database.ScrubDB // scrub history, optional
	Measure bool              // measure freed bytes even if the config does not ask for it
}

// Report summarizes a scrub that got past the pre-flight checks
type Report struct {
	RunID        string
	Root         string
	Target       string
	Recursive    bool
	Matches      int
	Layers       int
	Removed      int
	AlreadyGone  int
	Failed       int
	Remediated   int
	Fallbacks    int
	BytesFreed   int64
	PeakInFlight int
	Duration     time.Duration
	Outcomes     []cleanup.Outcome
}

// Run deletes every entry named opts.Target under opts.Root. Pre-flight
// failures return a nil report. Otherwise the report is always returned,
// together with the first per-entry failure if any.
func Run(ctx context.Context, opts Options) (*Report, error) {
	metrics.Init()
	start := time.Now()
	cfg := opts.config()
	logger := opts.logger()

	root, err := prepare(opts, cfg)
	if err != nil {
		metrics.RecordRun(resultRejected, time.Since(start))
		return nil, err
	}

	lock, err := filelock.AcquireRoot(cfg.LockDir, root)
	if err != nil {
		metrics.RecordRun(resultRejected, time.Since(start))
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release root lock", "path", lock.Path(), "error", err)
		}
	}()

	pool := workpool.New(cfg.WorkerPool.Workers, cfg.WorkerPool.QueueSize)
	defer pool.Close()

	matches, err := discover(ctx, pool, logger, cfg, root, opts)
	if err != nil {
		metrics.RecordRun(resultRejected, time.Since(start))
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Root:      root,
		Target:    opts.Target,
		Recursive: opts.Recursive,
		Matches:   len(matches),
	}

	if len(matches) == 0 {
		opts.progress("nothing to delete")
		report.Duration = time.Since(start)
		metrics.RecordRun(resultOK, report.Duration)
		return report, nil
	}

	layers := scheduler.Schedule(matches)
	lim := limiter.New(cfg.PermitsFor(opts.Recursive))
	measure := opts.Measure || cfg.ReportFreedBytes

	cleaner := cleanup.NewCleaner(logger, pool, lim)
	if opts.Deleter != nil {
		cleaner.SetDeleter(opts.Deleter)
	}
	cleaner.SetRemediator(opts.remediator(cfg))
	cleaner.SetMeasure(measure)
	cleaner.SetLayerObserver(func(l scheduler.Layer) {
		opts.progress(fmt.Sprintf("layer depth=%d: %d entries", l.Depth, len(l.Matches)))
	})
	cleaner.SetObserver(func(o cleanup.Outcome) {
		opts.progress(outcomeLine(o))
	})

	hist := newHistory(opts.DB, logger)
	run := &database.RunRecord{
		ID:        report.RunID,
		Root:      root,
		Target:    opts.Target,
		Recursive: opts.Recursive,
		StartedAt: time.Now(),
		Status:    database.StatusRunning,
		Matches:   len(matches),
	}
	hist.begin(run)

	res := cleaner.RunLayers(ctx, layers)

	report.Layers = res.Layers
	report.Removed = res.Removed
	report.AlreadyGone = res.AlreadyGone
	report.Failed = res.Failed
	report.Remediated = res.Remediated
	report.Fallbacks = res.Fallbacks
	report.BytesFreed = res.BytesFreed
	report.PeakInFlight = res.PeakInFlight
	report.Outcomes = res.Outcomes
	report.Duration = time.Since(start)

	if measure {
		metrics.UpdateMatchMetrics(root, &disk.PathStats{UsedBytes: res.BytesFreed, FileCount: res.FilesFreed})
	}

	hist.finish(run, res)
	opts.progress(summaryLine(report))

	if res.FirstErr != nil {
		metrics.RecordRun(resultFailed, report.Duration)
		return report, res.FirstErr
	}
	metrics.RecordRun(resultOK, report.Duration)
	return report, nil
}

// Discover returns the matches Run would delete without touching anything
func Discover(ctx context.Context, opts Options) ([]scan.Match, error) {
	cfg := opts.config()
	root, err := prepare(opts, cfg)
	if err != nil {
		return nil, err
	}

	pool := workpool.New(cfg.WorkerPool.Workers, cfg.WorkerPool.QueueSize)
	defer pool.Close()

	return discover(ctx, pool, opts.logger(), cfg, root, opts)
}

// prepare runs the pre-flight checks and returns the absolute root
func prepare(opts Options, cfg *config.Config) (string, error) {
	if err := ValidateTarget(opts.Target); err != nil {
		return "", err
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return "", faults.New(faults.ErrNotFound, opts.Root, err)
	}

	if err := scan.CheckRoot(root, opts.Recursive); err != nil {
		return "", err
	}

	validator := safety.NewValidator(cfg.ProtectedPaths)
	if err := validator.ValidateRoot(root); err != nil {
		return "", err
	}

	// Scrub the real directory so locking and match paths do not depend on
	// which link the caller came through.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", faults.New(faults.ErrTraversal, root, err)
	}
	return resolved, nil
}

func discover(ctx context.Context, pool *workpool.Pool, logger *logging.Leveled, cfg *config.Config, root string, opts Options) ([]scan.Match, error) {
	scanner := scan.NewScanner(logger, pool)
	matches, err := scanner.Discover(ctx, scan.Options{
		Root:      root,
		Target:    opts.Target,
		Recursive: opts.Recursive,
		SkipDirs:  cfg.SkipDirs,
	})
	if err != nil {
		return nil, err
	}

	validator := safety.NewValidator(cfg.ProtectedPaths)
	for _, m := range matches {
		if err := validator.ValidateMatch(root, m.Path); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// ValidateTarget rejects names that could never equal a single path
// component: empty, "." and "..", and anything with a separator.
func ValidateTarget(target string) error {
	switch {
	case target == "", target == ".", target == "..":
		return faults.New(faults.ErrInvalidTarget, target, nil)
	case strings.ContainsRune(target, '/'), strings.ContainsRune(target, filepath.Separator):
		return faults.New(faults.ErrInvalidTarget, target, nil)
	}
	return nil
}

func (o Options) config() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	return config.Default()
}

func (o Options) logger() *logging.Leveled {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}

func (o Options) remediator(cfg *config.Config) remediate.Remediator {
	if cfg.Remediation.Disabled {
		return nil
	}
	if o.Remediator != nil {
		return o.Remediator
	}
	return remediate.New(remediate.Options{SkipOwnership: cfg.Remediation.SkipOwnership})
}

func (o Options) progress(line string) {
	if o.Progress != nil {
		o.Progress(line)
	}
}

func outcomeLine(o cleanup.Outcome) string {
	switch o.Status {
	case cleanup.Success:
		if o.Remediated {
			return "removed " + o.Match.Path + " (after permission repair)"
		}
		return "removed " + o.Match.Path
	case cleanup.AlreadyGone:
		return "already gone " + o.Match.Path
	default:
		return fmt.Sprintf("failed %s: %v", o.Match.Path, o.Err)
	}
}

func summaryLine(r *Report) string {
	line := fmt.Sprintf("done: removed %d, already gone %d, failed %d in %s",
		r.Removed, r.AlreadyGone, r.Failed, r.Duration.Round(time.Millisecond))
	if r.BytesFreed > 0 {
		line += fmt.Sprintf(" (%d bytes freed)", r.BytesFreed)
	}
	return line
}
