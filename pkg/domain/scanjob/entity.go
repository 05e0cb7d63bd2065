package scanjob

import (
	"encoding/json"
	"time"

	"github.com/reconforge/api/pkg/domain/shared"
)

// ScanJob represents one reconnaissance job against a target.
//
// State machine:
//
//	pending -> running -> completed | failed
//	pending | running -> cancelled
//
// completed, failed and cancelled are terminal and immutable.
type ScanJob struct {
	ID             shared.ID
	TargetID       int
	OrganizationID shared.ID
	CreatedBy      shared.ID

	JobType   JobType
	ScanTypes []string
	Priority  Priority
	Config    json.RawMessage

	Status             Status
	ProgressPercentage int
	CurrentActivity    string

	// Results is the aggregated, job-type-specific output. Populated
	// only once the job reaches completed or cancelled.
	Results json.RawMessage

	// ErrorMessage is populated only on failed jobs.
	ErrorMessage string

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewScanJob creates a pending scan job. Config must already be
// validated for the job type.
func NewScanJob(targetID int, orgID, createdBy shared.ID, jobType JobType, scanTypes []string, priority Priority, config json.RawMessage) (*ScanJob, error) {
	if targetID <= 0 {
		return nil, shared.NewDomainError("VALIDATION", "target_id is required", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "organization_id is required", shared.ErrValidation)
	}
	if createdBy.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "created_by is required", shared.ErrValidation)
	}
	if _, err := ParseJobType(string(jobType)); err != nil {
		return nil, shared.NewDomainError("VALIDATION", err.Error(), shared.ErrValidation)
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if scanTypes == nil {
		scanTypes = []string{}
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}

	now := time.Now().UTC()
	return &ScanJob{
		ID:                 shared.NewID(),
		TargetID:           targetID,
		OrganizationID:     orgID,
		CreatedBy:          createdBy,
		JobType:            jobType,
		ScanTypes:          scanTypes,
		Priority:           priority,
		Config:             config,
		Status:             StatusPending,
		ProgressPercentage: 0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *ScanJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// MarkRunning transitions pending -> running and records started_at.
func (j *ScanJob) MarkRunning() error {
	if j.Status != StatusPending {
		return shared.NewDomainError("CONFLICT", "job is not pending", shared.ErrConflict)
	}
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// SetProgress records a progress update. Decreasing percentages are
// rejected; the caller logs and drops them. Only running jobs accept
// progress.
func (j *ScanJob) SetProgress(percent int, activity string) error {
	if j.Status != StatusRunning {
		return shared.NewDomainError("CONFLICT", "job is not running", shared.ErrConflict)
	}
	if percent < 0 || percent > 100 {
		return shared.NewDomainError("VALIDATION", "progress must be 0-100", shared.ErrValidation)
	}
	if percent < j.ProgressPercentage {
		return shared.NewDomainError("CONFLICT", "progress may not decrease", shared.ErrConflict)
	}
	j.ProgressPercentage = percent
	j.CurrentActivity = activity
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Finalize transitions the job to a terminal status. A job already in
// a terminal status is left untouched and the call reports false, so a
// race between natural completion and cancellation resolves to
// whichever arrived first.
func (j *ScanJob) Finalize(status Status, results json.RawMessage, errorMessage string) bool {
	if j.IsTerminal() || !status.IsTerminal() {
		return false
	}

	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.CurrentActivity = ""

	switch status {
	case StatusFailed:
		j.ErrorMessage = errorMessage
		j.Results = nil
	case StatusCompleted:
		j.Results = results
		j.ErrorMessage = ""
		j.ProgressPercentage = 100
	case StatusCancelled:
		// Partial results are retained on cancellation.
		j.Results = results
		j.ErrorMessage = ""
	}
	return true
}
