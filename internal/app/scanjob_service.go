package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/reconforge/api/pkg/logger"
	"github.com/reconforge/api/pkg/pagination"
)

// DispatchEnqueuer hands accepted jobs to the background queue.
// Implemented by the asynq job client.
type DispatchEnqueuer interface {
	EnqueueScanJob(ctx context.Context, jobID shared.ID, priority scanjob.Priority) error
}

// CancelBroadcaster relays stop requests to whichever worker process
// is executing the job. Implemented by the redis notifier.
type CancelBroadcaster interface {
	BroadcastCancel(ctx context.Context, jobID shared.ID) error
}

// StatusNotifier publishes job lifecycle events for push consumers.
type StatusNotifier interface {
	PublishJobStatus(ctx context.Context, job *scanjob.ScanJob)
}

// ScanJobService handles scan job business operations: admission,
// lookup, listing, stop requests and stats.
type ScanJobService struct {
	jobs     scanjob.Repository
	targets  target.Repository
	enqueuer DispatchEnqueuer
	canceler CancelBroadcaster
	notifier StatusNotifier
	logger   *logger.Logger
}

// NewScanJobService creates a new ScanJobService.
func NewScanJobService(jobs scanjob.Repository, targets target.Repository, enqueuer DispatchEnqueuer, log *logger.Logger) *ScanJobService {
	return &ScanJobService{
		jobs:     jobs,
		targets:  targets,
		enqueuer: enqueuer,
		logger:   log.With("service", "scan_job"),
	}
}

// SetCancelBroadcaster wires the cross-process stop relay.
func (s *ScanJobService) SetCancelBroadcaster(c CancelBroadcaster) {
	s.canceler = c
}

// SetStatusNotifier wires the lifecycle event publisher.
func (s *ScanJobService) SetStatusNotifier(n StatusNotifier) {
	s.notifier = n
}

// CreateScanJobInput represents the input for creating a scan job.
type CreateScanJobInput struct {
	TargetID       int             `validate:"required,gt=0"`
	OrganizationID string          `validate:"required,uuid"`
	CreatedBy      string          `validate:"required,uuid"`
	JobType        string          `validate:"required,job_type"`
	ScanTypes      []string        `validate:"omitempty,max=10,dive,job_type"`
	Priority       string          `validate:"omitempty,job_priority"`
	Config         json.RawMessage `validate:"-"`
}

// CreateScanJob validates and persists a new pending job, then hands
// it to the dispatch queue. At most one non-terminal job may exist per
// (target, job type); a second submission is rejected with a conflict
// naming the active job.
func (s *ScanJobService) CreateScanJob(ctx context.Context, input CreateScanJobInput) (*scanjob.ScanJob, error) {
	jobType, err := scanjob.ParseJobType(input.JobType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}

	priority, err := scanjob.ParsePriority(input.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}

	orgID, err := shared.IDFromString(input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid organization id", shared.ErrValidation)
	}

	createdBy, err := shared.IDFromString(input.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid created_by id", shared.ErrValidation)
	}

	// Config is validated before the job is accepted so a malformed
	// document fails the request, never a running scan.
	if _, err := scanjob.ParseConfig(jobType, input.Config); err != nil {
		return nil, err
	}

	if _, err := s.targets.GetByID(ctx, input.TargetID); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("NOT_FOUND",
				fmt.Sprintf("target %d not found", input.TargetID), shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check target: %w", err)
	}

	if active, err := s.jobs.FindActive(ctx, input.TargetID, jobType); err == nil {
		return nil, shared.NewDomainError("CONFLICT",
			fmt.Sprintf("target %d already has an active %s job (%s, %s)",
				input.TargetID, jobType, active.ID, active.Status),
			shared.ErrConflict)
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check active jobs: %w", err)
	}

	job, err := scanjob.NewScanJob(input.TargetID, orgID, createdBy, jobType, input.ScanTypes, priority, input.Config)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if shared.IsConflict(err) {
			return nil, shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %d already has an active %s job", input.TargetID, jobType),
				shared.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create scan job: %w", err)
	}

	if err := s.enqueuer.EnqueueScanJob(ctx, job.ID, job.Priority); err != nil {
		// The job stays pending in the store; stopping it frees the
		// (target, job type) slot for a fresh submission.
		s.logger.Error("failed to enqueue scan job",
			"job_id", job.ID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to enqueue scan job: %w", err)
	}

	s.logger.Info("scan job created",
		"job_id", job.ID.String(),
		"target_id", job.TargetID,
		"job_type", job.JobType,
		"priority", job.Priority,
	)

	s.publishStatus(ctx, job)
	return job, nil
}

// GetScanJob retrieves a job by ID.
func (s *ScanJobService) GetScanJob(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ListScanJobs lists jobs matching the filter, newest first.
func (s *ScanJobService) ListScanJobs(ctx context.Context, filter scanjob.Filter, page pagination.Pagination) (pagination.Result[*scanjob.ScanJob], error) {
	return s.jobs.List(ctx, filter, page)
}

// StopScanJob requests cancellation of a pending or running job.
//
// A pending job is finalized to cancelled immediately. A running job
// gets a cancel broadcast and transitions once its worker stops the
// tool processes and persists partial results; callers observe the
// transition through subsequent reads. Stopping a terminal job is a
// conflict.
func (s *ScanJobService) StopScanJob(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.IsTerminal() {
		return nil, shared.NewDomainError("CONFLICT",
			fmt.Sprintf("job %s is already %s", id, job.Status), shared.ErrConflict)
	}

	if job.Status == scanjob.StatusPending {
		// The dispatch handler re-reads job status before starting,
		// so finalizing here wins even if the task is already queued.
		job, err = s.jobs.Finalize(ctx, id, scanjob.StatusCancelled, nil, "")
		if err != nil {
			return nil, fmt.Errorf("failed to cancel pending job: %w", err)
		}
		s.logger.Info("pending scan job cancelled", "job_id", id.String())
		s.publishStatus(ctx, job)
		return job, nil
	}

	if s.canceler != nil {
		if err := s.canceler.BroadcastCancel(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to broadcast cancel: %w", err)
		}
	}
	s.logger.Info("scan job stop requested", "job_id", id.String())
	return job, nil
}

// ScanJobStats returns job counts by status for an organization.
func (s *ScanJobService) ScanJobStats(ctx context.Context, orgID shared.ID) (*scanjob.Stats, error) {
	return s.jobs.Stats(ctx, orgID)
}

func (s *ScanJobService) publishStatus(ctx context.Context, job *scanjob.ScanJob) {
	if s.notifier != nil {
		s.notifier.PublishJobStatus(ctx, job)
	}
}
