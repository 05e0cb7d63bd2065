package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reconforge/api/internal/metrics"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/logger"
)

// Reaper fails running jobs whose worker died without finalizing
// them. A running job stops touching updated_at once its process is
// gone; anything stale past the threshold is orphaned.
type Reaper struct {
	jobs       scanjob.Repository
	cron       *cron.Cron
	staleAfter time.Duration
	logger     *logger.Logger
}

// NewReaper creates a Reaper. staleAfter should comfortably exceed
// the longest adapter timeout so slow scans are never reaped.
func NewReaper(jobs scanjob.Repository, staleAfter time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{
		jobs:       jobs,
		cron:       cron.New(),
		staleAfter: staleAfter,
		logger:     log.With("component", "reaper"),
	}
}

// Start schedules the sweep every five minutes.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		r.sweep(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop stops the schedule and waits for a running sweep.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.jobs.ListStaleRunning(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to list stale jobs", "error", err)
		return
	}

	for _, job := range stale {
		final, err := r.jobs.Finalize(ctx, job.ID, scanjob.StatusFailed, nil,
			"scan orphaned: no progress since "+job.UpdatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			r.logger.Error("failed to reap stale job", "job_id", job.ID.String(), "error", err)
			continue
		}
		if final.Status == scanjob.StatusFailed {
			metrics.JobsTotal.WithLabelValues(string(job.JobType), string(scanjob.StatusFailed)).Inc()
			r.logger.Warn("reaped orphaned scan job",
				"job_id", job.ID.String(),
				"job_type", job.JobType,
				"last_update", job.UpdatedAt,
			)
		}
	}
}
