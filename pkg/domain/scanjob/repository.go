package scanjob

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/pagination"
)

// Filter represents filter options for listing scan jobs.
type Filter struct {
	OrganizationID *shared.ID
	TargetID       *int
	JobType        *JobType
	Status         *Status
}

// Stats represents aggregated scan job counts by status.
type Stats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// Repository is the durable job store. It is the only shared mutable
// resource across components; all job mutation goes through it.
type Repository interface {
	// Create persists a new pending scan job.
	Create(ctx context.Context, job *ScanJob) error

	// GetByID retrieves a job by ID. Returns shared.ErrNotFound if
	// the job does not exist.
	GetByID(ctx context.Context, id shared.ID) (*ScanJob, error)

	// List lists jobs matching the filter, newest first.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*ScanJob], error)

	// FindActive returns the non-terminal job for (target, job type),
	// or shared.ErrNotFound when none exists. Used to enforce
	// one-active-job-per-target-and-type.
	FindActive(ctx context.Context, targetID int, jobType JobType) (*ScanJob, error)

	// MarkRunning transitions a pending job to running and records
	// started_at. Returns shared.ErrConflict if the job is not
	// pending.
	MarkRunning(ctx context.Context, id shared.ID) (*ScanJob, error)

	// UpdateProgress records a progress update for a running job.
	// A percentage lower than the stored one is dropped (the store
	// keeps the maximum); updates on non-running jobs are no-ops.
	UpdateProgress(ctx context.Context, id shared.ID, percent int, activity string) error

	// Finalize transitions a job to a terminal status exactly once.
	// If the job is already terminal the stored state is returned
	// unchanged, making the call idempotent under races between
	// completion and cancellation.
	Finalize(ctx context.Context, id shared.ID, status Status, results json.RawMessage, errorMessage string) (*ScanJob, error)

	// ListStaleRunning returns running jobs whose updated_at is older
	// than the cutoff. Used by the reaper to fail orphaned jobs.
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*ScanJob, error)

	// Stats returns job counts by status for an organization.
	Stats(ctx context.Context, orgID shared.ID) (*Stats, error)
}
