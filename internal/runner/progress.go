package runner

import (
	"context"
	"sync"

	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
)

// ProgressSink persists progress updates. Implemented by the scan job
// repository.
type ProgressSink interface {
	UpdateProgress(ctx context.Context, id shared.ID, percent int, activity string) error
}

// ProgressTracker serializes progress reports for one running job and
// enforces monotonicity: a report lower than the current percentage is
// dropped with a warning instead of moving the bar backwards.
type ProgressTracker struct {
	jobID shared.ID
	sink  ProgressSink
	log   *logger.Logger

	mu      sync.Mutex
	percent int
}

// NewProgressTracker creates a tracker for one job starting at zero.
func NewProgressTracker(jobID shared.ID, sink ProgressSink, log *logger.Logger) *ProgressTracker {
	return &ProgressTracker{
		jobID: jobID,
		sink:  sink,
		log:   log.With("job_id", jobID.String()),
	}
}

// Report records a progress update. Out-of-range values and decreases
// are dropped; persistence failures are logged but never fail the scan.
func (t *ProgressTracker) Report(ctx context.Context, percent int, activity string) {
	if percent < 0 || percent > 100 {
		t.log.Warn("dropping out-of-range progress report", "percent", percent)
		return
	}

	t.mu.Lock()
	if percent < t.percent {
		current := t.percent
		t.mu.Unlock()
		t.log.Warn("dropping non-monotonic progress report",
			"reported", percent,
			"current", current,
		)
		return
	}
	t.percent = percent
	t.mu.Unlock()

	if err := t.sink.UpdateProgress(ctx, t.jobID, percent, activity); err != nil {
		t.log.Warn("failed to persist progress", "percent", percent, "error", err)
	}
}

// Percent returns the highest percentage reported so far.
func (t *ProgressTracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

var _ ProgressSink = (scanjob.Repository)(nil)
