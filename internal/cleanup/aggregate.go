package cleanup

import "sync"

// Result summarizes every outcome of a run
type Result struct {
	Attempted    int
	Removed      int
	AlreadyGone  int
	Failed       int
	Remediated   int
	Fallbacks    int
	BytesFreed   int64
	FilesFreed   int64
	Layers       int
	PeakInFlight int
	// FirstErr is the first failure by completion order, nil when nothing failed
	FirstErr error
	// Outcomes in completion order
	Outcomes []Outcome
}

// Aggregator collects outcomes from concurrent deletions.
// It never short-circuits: every outcome is counted.
type Aggregator struct {
	mu       sync.Mutex
	logger   CleanupLogger
	observer func(Outcome)
	res      Result
}

// NewAggregator creates an aggregator. observer may be nil.
func NewAggregator(logger CleanupLogger, observer func(Outcome)) *Aggregator {
	return &Aggregator{logger: logger, observer: observer}
}

// Add records one outcome. The observer runs under the aggregator lock.
func (a *Aggregator) Add(out Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.res.Attempted++
	switch out.Status {
	case Success:
		a.res.Removed++
		a.res.BytesFreed += out.Bytes
		a.res.FilesFreed += out.Files
	case AlreadyGone:
		a.res.AlreadyGone++
	case Failed:
		a.res.Failed++
		if a.res.FirstErr == nil {
			a.res.FirstErr = out.Err
		}
		if a.logger != nil {
			a.logger.Error("Deletion failed", "path", out.Match.Path, "error", out.Err)
		}
	}
	if out.Remediated {
		a.res.Remediated++
	}
	if out.Fallback {
		a.res.Fallbacks++
	}
	a.res.Outcomes = append(a.res.Outcomes, out)

	if a.observer != nil {
		a.observer(out)
	}
}

// Result returns a snapshot of the totals so far
func (a *Aggregator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := a.res
	res.Outcomes = append([]Outcome(nil), a.res.Outcomes...)
	return res
}
