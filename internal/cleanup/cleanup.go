package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dirscrub/internal/disk"
	"dirscrub/internal/faults"
	"dirscrub/internal/fsops"
	"dirscrub/internal/limiter"
	"dirscrub/internal/logging"
	"dirscrub/internal/metrics"
	"dirscrub/internal/remediate"
	"dirscrub/internal/scan"
	"dirscrub/internal/scheduler"
	"dirscrub/internal/workpool"
)

// CleanupLogger interface for structured logging in cleanup
type CleanupLogger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Status is the terminal state of one match
type Status int

const (
	Success Status = iota
	AlreadyGone
	Failed
)

// String returns the label used in logs, metrics and history
func (s Status) String() string {
	switch s {
	case Success:
		return metrics.OutcomeRemoved
	case AlreadyGone:
		return metrics.OutcomeAlreadyGone
	default:
		return metrics.OutcomeFailed
	}
}

// Outcome is the result of running the deletion state machine on one match
type Outcome struct {
	Match      scan.Match
	Status     Status
	Err        error // *faults.Error when Status is Failed
	Remediated bool  // permission repair ran
	Fallback   bool  // removal was retried on the worker pool
	Bytes      int64 // measured size, only when measuring is on
	Files      int64 // regular files measured with Bytes
	Duration   time.Duration
}

// Cleaner deletes matches layer by layer with bounded concurrency
type Cleaner struct {
	logger        CleanupLogger
	pool          *workpool.Pool
	limiter       *limiter.Limiter
	deleter       fsops.Deleter
	remediator    remediate.Remediator
	measure       bool
	observer      func(Outcome)
	layerObserver func(scheduler.Layer)
}

// NewCleaner creates a new Cleaner. Removal goes through the real
// filesystem until SetDeleter says otherwise; remediation is off until
// SetRemediator is called.
func NewCleaner(logger CleanupLogger, pool *workpool.Pool, lim *limiter.Limiter) *Cleaner {
	metrics.Init()
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cleaner{
		logger:  logger,
		pool:    pool,
		limiter: lim,
		deleter: fsops.OSDeleter{},
	}
}

// SetDeleter swaps the filesystem primitives (fault injection in tests)
func (c *Cleaner) SetDeleter(d fsops.Deleter) { c.deleter = d }

// SetRemediator enables permission repair. nil disables it.
func (c *Cleaner) SetRemediator(r remediate.Remediator) { c.remediator = r }

// SetMeasure makes the cleaner record the size of each match before removal
func (c *Cleaner) SetMeasure(on bool) { c.measure = on }

// SetObserver registers a callback for every outcome. Calls are serialized.
func (c *Cleaner) SetObserver(fn func(Outcome)) { c.observer = fn }

// SetLayerObserver registers a callback invoked as each layer starts
func (c *Cleaner) SetLayerObserver(fn func(scheduler.Layer)) { c.layerObserver = fn }

// RunLayers resolves every layer in order. A layer starts only after every
// entry of the previous layer reached a terminal state. Failures never stop
// later entries or layers.
func (c *Cleaner) RunLayers(ctx context.Context, layers []scheduler.Layer) Result {
	agg := NewAggregator(c.logger, c.observer)

	c.logger.Info("Starting deletion",
		"layers", len(layers),
		"matches", scheduler.Count(layers),
		"permits", c.limiter.Permits(),
	)

	for _, layer := range layers {
		if c.layerObserver != nil {
			c.layerObserver(layer)
		}
		start := time.Now()
		c.runLayer(ctx, layer, agg)
		elapsed := time.Since(start)
		metrics.RecordLayer(elapsed)
		c.logger.Info("Layer complete",
			"depth", layer.Depth,
			"entries", len(layer.Matches),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	res := agg.Result()
	res.Layers = len(layers)
	res.PeakInFlight = c.limiter.Peak()

	c.logger.Info("Deletion complete",
		"removed", res.Removed,
		"already_gone", res.AlreadyGone,
		"failed", res.Failed,
		"remediated", res.Remediated,
		"peak_inflight", res.PeakInFlight,
	)
	return res
}

func (c *Cleaner) runLayer(ctx context.Context, layer scheduler.Layer, agg *Aggregator) {
	var wg sync.WaitGroup
	for _, m := range layer.Matches {
		if err := c.limiter.Acquire(ctx); err != nil {
			// Cancelled before this entry started
			out := Outcome{Match: m, Status: Failed, Err: faults.New(faults.ErrTask, m.Path, err)}
			c.record(out)
			agg.Add(out)
			continue
		}
		metrics.InFlightDeletions.Inc()

		wg.Add(1)
		go func(m scan.Match) {
			defer wg.Done()
			defer c.limiter.Release()
			defer metrics.InFlightDeletions.Dec()

			out := c.safeDelete(ctx, m)
			c.record(out)
			agg.Add(out)
		}(m)
	}
	wg.Wait()
}

func (c *Cleaner) safeDelete(ctx context.Context, m scan.Match) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Match:  m,
				Status: Failed,
				Err:    faults.New(faults.ErrTask, m.Path, fmt.Errorf("panic: %v", r)),
			}
		}
	}()
	return c.Delete(ctx, m)
}

func (c *Cleaner) record(out Outcome) {
	metrics.RecordEntry(out.Status.String(), faults.Label(faults.KindOf(out.Err)), out.Bytes)
}

// Delete runs the deletion state machine for one match:
// direct removal, then removal on the worker pool, then permission repair
// and one more removal. Work already started is not abandoned when ctx is
// cancelled.
func (c *Cleaner) Delete(ctx context.Context, m scan.Match) Outcome {
	start := time.Now()
	jobCtx := context.WithoutCancel(ctx)

	var size disk.PathStats
	if c.measure {
		if stats, err := disk.Measure(m.Path); err == nil {
			size = *stats
		}
	}

	out := c.direct(jobCtx, m)
	if out.Status == Success {
		out.Bytes = size.UsedBytes
		out.Files = size.FileCount
	}
	out.Duration = time.Since(start)

	switch out.Status {
	case Failed:
		c.logger.Debug("Deletion failed", "path", m.Path, "fallback", out.Fallback, "remediated", out.Remediated)
	case AlreadyGone:
		c.logger.Debug("Already gone", "path", m.Path)
	default:
		c.logger.Debug("Removed", "path", m.Path, "remediated", out.Remediated)
	}
	return out
}

func (c *Cleaner) direct(ctx context.Context, m scan.Match) Outcome {
	err := fsops.RemoveMatch(c.deleter, m.Path, m.IsDir)
	if err == nil {
		return Outcome{Match: m, Status: Success}
	}
	switch fsops.Classify(err) {
	case fsops.AlreadyGone:
		return Outcome{Match: m, Status: AlreadyGone}
	case fsops.Permission:
		return c.remediate(ctx, Outcome{Match: m}, err)
	}
	return c.fallback(ctx, m, err)
}

func (c *Cleaner) fallback(ctx context.Context, m scan.Match, cause error) Outcome {
	out := Outcome{Match: m, Fallback: true}
	metrics.FallbacksTotal.Inc()
	c.logger.Debug("Retrying removal on worker pool", "path", m.Path, "error", cause)

	err := c.pool.Execute(ctx, func() error {
		return fsops.RemoveMatch(c.deleter, m.Path, m.IsDir)
	})
	if err == nil {
		out.Status = Success
		return out
	}
	if isPoolFailure(err) {
		return failed(out, faults.ErrTask, err)
	}
	switch fsops.Classify(err) {
	case fsops.AlreadyGone:
		out.Status = AlreadyGone
		return out
	case fsops.Permission:
		return c.remediate(ctx, out, err)
	}
	return failed(out, faults.ErrIO, err)
}

func (c *Cleaner) remediate(ctx context.Context, out Outcome, cause error) Outcome {
	m := out.Match
	if c.remediator == nil {
		return failed(out, faults.ErrPermissionDenied, cause)
	}

	out.Remediated = true
	c.logger.Info("Remediating permissions", "path", m.Path, "error", cause)

	var repairErr error
	err := c.pool.Execute(ctx, func() error {
		repairErr = c.remediator.Remediate(m.Path, m.IsDir)
		return fsops.RemoveMatch(c.deleter, m.Path, m.IsDir)
	})
	if isPoolFailure(err) {
		metrics.RecordRemediation(false)
		return failed(out, faults.ErrTask, err)
	}
	metrics.RecordRemediation(repairErr == nil)
	if repairErr != nil {
		c.logger.Warn("Remediation incomplete", "path", m.Path, "error", repairErr)
	}

	if err == nil {
		out.Status = Success
		return out
	}
	if fsops.Classify(err) == fsops.AlreadyGone {
		out.Status = AlreadyGone
		return out
	}
	return failed(out, faults.ErrPermissionDenied, errors.Join(err, repairErr))
}

func isPoolFailure(err error) bool {
	return errors.Is(err, workpool.ErrRejected) || errors.Is(err, workpool.ErrPanic)
}

func failed(out Outcome, kind error, cause error) Outcome {
	out.Status = Failed
	out.Err = faults.New(kind, out.Match.Path, cause)
	return out
}
