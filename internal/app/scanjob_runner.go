package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reconforge/api/internal/aggregate"
	"github.com/reconforge/api/internal/metrics"
	"github.com/reconforge/api/internal/runner"
	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/reconforge/api/pkg/logger"
)

// ScanRunner executes one dispatched scan job end to end: it claims
// the job, runs the tool adapters, aggregates their output and
// finalizes the job exactly once. Invoked by the queue worker.
type ScanRunner struct {
	jobs     scanjob.Repository
	targets  target.Repository
	pool     *runner.Pool
	cancels  *runner.CancelRegistry
	spool    *runner.Spool
	notifier StatusNotifier
	keywords []string
	logger   *logger.Logger
}

// NewScanRunner creates a ScanRunner.
func NewScanRunner(jobs scanjob.Repository, targets target.Repository, pool *runner.Pool, cancels *runner.CancelRegistry, spool *runner.Spool, keywords []string, log *logger.Logger) *ScanRunner {
	return &ScanRunner{
		jobs:     jobs,
		targets:  targets,
		pool:     pool,
		cancels:  cancels,
		spool:    spool,
		keywords: keywords,
		logger:   log.With("service", "scan_runner"),
	}
}

// SetStatusNotifier wires the lifecycle event publisher.
func (r *ScanRunner) SetStatusNotifier(n StatusNotifier) {
	r.notifier = n
}

// Cancels exposes the cancel registry for the stop relay.
func (r *ScanRunner) Cancels() *runner.CancelRegistry {
	return r.cancels
}

// Run executes the job with the given ID. A job cancelled before
// dispatch is skipped without error. Run never returns an error for
// scan-level failures; those are recorded on the job itself so the
// queue does not retry a deterministic failure.
const tracerName = "github.com/reconforge/api/internal/app"

func (r *ScanRunner) Run(ctx context.Context, jobID shared.ID) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scanjob.run",
		trace.WithAttributes(attribute.String("scanjob.id", jobID.String())))
	defer span.End()

	log := r.logger.With("job_id", jobID.String())

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("dispatched job no longer exists")
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.IsTerminal() {
		log.Info("skipping job cancelled before dispatch", "status", job.Status)
		return nil
	}

	tgt, err := r.targets.GetByID(ctx, job.TargetID)
	if err != nil {
		_, ferr := r.jobs.Finalize(ctx, jobID, scanjob.StatusFailed, nil, "target no longer exists")
		if ferr != nil {
			return fmt.Errorf("failed to finalize job without target: %w", ferr)
		}
		return nil
	}

	cfg, err := scanjob.ParseConfig(job.JobType, job.Config)
	if err != nil {
		// Admission validates configs, so this only happens when the
		// stored document predates a config schema change.
		_, ferr := r.jobs.Finalize(ctx, jobID, scanjob.StatusFailed, nil, fmt.Sprintf("invalid config: %v", err))
		if ferr != nil {
			return fmt.Errorf("failed to finalize job with invalid config: %w", ferr)
		}
		return nil
	}

	// Registered before the running status becomes visible, so a stop
	// broadcast racing the transition always finds the cancel hook.
	runCtx, cancel := r.cancels.Register(ctx, jobID)
	defer cancel()
	defer r.cancels.Release(jobID)

	job, err = r.jobs.MarkRunning(ctx, jobID)
	if err != nil {
		if shared.IsConflict(err) {
			// Lost the race with a cancel.
			log.Info("job no longer pending, skipping")
			return nil
		}
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	r.publishStatus(ctx, job)

	span.SetAttributes(
		attribute.String("scanjob.type", string(job.JobType)),
		attribute.String("scanjob.target", tgt.Domain),
	)

	jobType := string(job.JobType)
	metrics.JobsInProgress.WithLabelValues(jobType).Inc()
	defer metrics.JobsInProgress.WithLabelValues(jobType).Dec()
	started := time.Now()

	log.Info("scan started",
		"target", tgt.Domain,
		"job_type", job.JobType,
		"priority", job.Priority,
	)

	tracker := runner.NewProgressTracker(jobID, r.jobs, r.logger)
	inputs, runErr := r.pool.Run(runCtx, jobID, tgt.Domain, job.JobType, cfg, tracker)

	result := aggregate.Aggregate(job.JobType, inputs, aggregate.Options{Keywords: r.keywords})
	status, results, errMsg := outcome(result, runErr)

	final, err := r.jobs.Finalize(ctx, jobID, status, results, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	span.SetAttributes(attribute.String("scanjob.status", string(final.Status)))

	metrics.JobsTotal.WithLabelValues(jobType, string(final.Status)).Inc()
	metrics.JobDuration.WithLabelValues(jobType).Observe(time.Since(started).Seconds())

	log.Info("scan finished",
		"status", final.Status,
		"duration", time.Since(started),
		"total_unique", result.TotalUnique,
		"interesting", result.InterestingCount,
	)
	r.publishStatus(ctx, final)

	if final.Status == scanjob.StatusCompleted {
		r.spool.Remove(jobID)
		r.refreshTargetStats(ctx, tgt, result)
	}
	return nil
}

// outcome maps a run result onto the job's terminal state. Every
// adapter failing fails the job; a partial failure completes the job
// with the failures annotated inside the results, not error_message.
func outcome(result *finding.AggregatedResult, runErr error) (scanjob.Status, json.RawMessage, string) {
	if runErr != nil {
		// Only an actual cancellation finalizes as cancelled; any
		// other pool error is a plain failure with its text recorded.
		if errors.Is(runErr, context.Canceled) {
			results, _ := json.Marshal(result)
			return scanjob.StatusCancelled, results, ""
		}
		return scanjob.StatusFailed, nil, runErr.Error()
	}

	failed := result.FailedTools()
	if len(failed) == len(result.Tools) && len(result.Tools) > 0 {
		reasons := make([]string, 0, len(failed))
		for _, tool := range failed {
			reasons = append(reasons, tool+": "+result.Tools[tool].Error)
		}
		return scanjob.StatusFailed, nil, "all adapters failed: " + strings.Join(reasons, "; ")
	}

	results, err := json.Marshal(result)
	if err != nil {
		return scanjob.StatusFailed, nil, fmt.Sprintf("failed to serialize results: %v", err)
	}
	return scanjob.StatusCompleted, results, ""
}

// refreshTargetStats updates the target's denormalized counters from
// a completed result. Only counters the job type produces are touched.
func (r *ScanRunner) refreshTargetStats(ctx context.Context, tgt *target.Target, result *finding.AggregatedResult) {
	counts := map[finding.Type]int{}
	for _, f := range result.Findings {
		counts[f.Type]++
	}

	stats := tgt.Stats
	if n, ok := counts[finding.TypeSubdomain]; ok {
		stats.Subdomains = n
	}
	if n, ok := counts[finding.TypeOpenPort]; ok {
		stats.OpenPorts = n
	}
	if n, ok := counts[finding.TypeVulnerability]; ok {
		stats.Vulnerabilities = n
	}
	if stats == tgt.Stats {
		return
	}
	stats.LastUpdated = time.Now().UTC()

	if err := r.targets.UpdateStats(ctx, tgt.ID, stats); err != nil {
		r.logger.Warn("failed to refresh target stats",
			"target_id", tgt.ID,
			"error", err,
		)
	}
}

func (r *ScanRunner) publishStatus(ctx context.Context, job *scanjob.ScanJob) {
	if r.notifier != nil {
		r.notifier.PublishJobStatus(ctx, job)
	}
}
