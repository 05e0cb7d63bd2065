// Package memory implements the repositories in process memory. Used
// by tests and by single-node deployments without PostgreSQL; the
// semantics mirror the postgres implementations.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/pagination"
)

// ScanJobRepository implements scanjob.Repository in memory.
type ScanJobRepository struct {
	mu   sync.RWMutex
	jobs map[shared.ID]*scanjob.ScanJob
}

// NewScanJobRepository creates an empty repository.
func NewScanJobRepository() *ScanJobRepository {
	return &ScanJobRepository{jobs: make(map[shared.ID]*scanjob.ScanJob)}
}

// Create persists a new pending scan job.
func (r *ScanJobRepository) Create(ctx context.Context, job *scanjob.ScanJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.jobs {
		if existing.TargetID == job.TargetID && existing.JobType == job.JobType && !existing.IsTerminal() {
			return shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %d already has an active %s job", job.TargetID, job.JobType),
				shared.ErrConflict)
		}
	}

	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

// GetByID retrieves a job by ID.
func (r *ScanJobRepository) GetByID(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

// List lists jobs matching the filter, newest first.
func (r *ScanJobRepository) List(ctx context.Context, filter scanjob.Filter, page pagination.Pagination) (pagination.Result[*scanjob.ScanJob], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*scanjob.ScanJob
	for _, job := range r.jobs {
		if filter.OrganizationID != nil && !job.OrganizationID.Equals(*filter.OrganizationID) {
			continue
		}
		if filter.TargetID != nil && job.TargetID != *filter.TargetID {
			continue
		}
		if filter.JobType != nil && job.JobType != *filter.JobType {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		clone := *job
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return pagination.NewResult(matched[start:end], total, page), nil
}

// FindActive returns the non-terminal job for (target, job type).
func (r *ScanJobRepository) FindActive(ctx context.Context, targetID int, jobType scanjob.JobType) (*scanjob.ScanJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.TargetID == targetID && job.JobType == jobType && !job.IsTerminal() {
			clone := *job
			return &clone, nil
		}
	}
	return nil, shared.NewDomainError("NOT_FOUND", "no active scan job", shared.ErrNotFound)
}

// MarkRunning transitions a pending job to running.
func (r *ScanJobRepository) MarkRunning(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", "scan job not found", shared.ErrNotFound)
	}
	if err := stored.MarkRunning(); err != nil {
		return nil, err
	}
	clone := *stored
	return &clone, nil
}

// UpdateProgress records a progress update for a running job. The
// stored percentage only moves forward; lower reports are dropped.
func (r *ScanJobRepository) UpdateProgress(ctx context.Context, id shared.ID, percent int, activity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", "scan job not found", shared.ErrNotFound)
	}
	if stored.Status != scanjob.StatusRunning {
		return nil
	}
	if percent <= stored.ProgressPercentage {
		if activity != "" {
			stored.CurrentActivity = activity
		}
		return nil
	}
	return stored.SetProgress(percent, activity)
}

// Finalize transitions a job to a terminal status exactly once.
func (r *ScanJobRepository) Finalize(ctx context.Context, id shared.ID, status scanjob.Status, results json.RawMessage, errorMessage string) (*scanjob.ScanJob, error) {
	if !status.IsTerminal() {
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("%s is not a terminal status", status), shared.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", "scan job not found", shared.ErrNotFound)
	}

	// First terminal writer wins; later calls observe the stored
	// state unchanged.
	stored.Finalize(status, results, errorMessage)
	clone := *stored
	return &clone, nil
}

// ListStaleRunning returns running jobs not updated since the cutoff.
func (r *ScanJobRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*scanjob.ScanJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*scanjob.ScanJob
	for _, job := range r.jobs {
		if job.Status == scanjob.StatusRunning && job.UpdatedAt.Before(cutoff) {
			clone := *job
			stale = append(stale, &clone)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	return stale, nil
}

// Stats returns job counts by status for an organization.
func (r *ScanJobRepository) Stats(ctx context.Context, orgID shared.ID) (*scanjob.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats scanjob.Stats
	for _, job := range r.jobs {
		if !job.OrganizationID.Equals(orgID) {
			continue
		}
		stats.Total++
		switch job.Status {
		case scanjob.StatusPending:
			stats.Pending++
		case scanjob.StatusRunning:
			stats.Running++
		case scanjob.StatusCompleted:
			stats.Completed++
		case scanjob.StatusFailed:
			stats.Failed++
		case scanjob.StatusCancelled:
			stats.Cancelled++
		}
	}
	return &stats, nil
}

func (r *ScanJobRepository) get(id shared.ID) (*scanjob.ScanJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", "scan job not found", shared.ErrNotFound)
	}
	clone := *job
	return &clone, nil
}
