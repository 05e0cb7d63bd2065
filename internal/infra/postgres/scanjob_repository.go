package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/pagination"
)

// ScanJobRepository implements scanjob.Repository using PostgreSQL.
//
// The free-text current activity is not a column: it changes with
// every progress report and has no value after the job finishes, so
// it lives in an in-process map and rides along on reads of running
// jobs served by this process.
type ScanJobRepository struct {
	db *DB

	mu         sync.RWMutex
	activities map[shared.ID]string
}

// NewScanJobRepository creates a new ScanJobRepository.
func NewScanJobRepository(db *DB) *ScanJobRepository {
	return &ScanJobRepository{
		db:         db,
		activities: make(map[shared.ID]string),
	}
}

const scanJobColumns = `
	id, target_id, organization_id, created_by, job_type, scan_types,
	priority, config, status, progress_percentage, results,
	error_message, started_at, completed_at, created_at, updated_at
`

// Create persists a new pending scan job.
func (r *ScanJobRepository) Create(ctx context.Context, job *scanjob.ScanJob) error {
	query := `
		INSERT INTO scan_jobs (` + scanJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	scanTypes, err := json.Marshal(job.ScanTypes)
	if err != nil {
		return fmt.Errorf("failed to encode scan types: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		job.ID.String(),
		job.TargetID,
		job.OrganizationID.String(),
		job.CreatedBy.String(),
		string(job.JobType),
		scanTypes,
		string(job.Priority),
		jsonDoc(job.Config, "{}"),
		string(job.Status),
		job.ProgressPercentage,
		jsonDoc(job.Results, "{}"),
		nullString(job.ErrorMessage),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		// A partial unique index on (target_id, job_type) for
		// non-terminal statuses backs the one-active-job rule.
		if isUniqueViolation(err) {
			return shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %d already has an active %s job", job.TargetID, job.JobType),
				shared.ErrConflict)
		}
		return fmt.Errorf("failed to create scan job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID.
func (r *ScanJobRepository) GetByID(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	query := `SELECT ` + scanJobColumns + ` FROM scan_jobs WHERE id = $1`
	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}
	r.attachActivity(job)
	return job, nil
}

// List lists jobs matching the filter, newest first.
func (r *ScanJobRepository) List(ctx context.Context, filter scanjob.Filter, page pagination.Pagination) (pagination.Result[*scanjob.ScanJob], error) {
	var (
		conds []string
		args  []any
	)
	addCond := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.OrganizationID != nil {
		addCond("organization_id = $%d", filter.OrganizationID.String())
	}
	if filter.TargetID != nil {
		addCond("target_id = $%d", *filter.TargetID)
	}
	if filter.JobType != nil {
		addCond("job_type = $%d", string(*filter.JobType))
	}
	if filter.Status != nil {
		addCond("status = $%d", string(*filter.Status))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM scan_jobs` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return pagination.Result[*scanjob.ScanJob]{}, fmt.Errorf("failed to count scan jobs: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM scan_jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		scanJobColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[*scanjob.ScanJob]{}, fmt.Errorf("failed to list scan jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*scanjob.ScanJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return pagination.Result[*scanjob.ScanJob]{}, err
		}
		r.attachActivity(job)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*scanjob.ScanJob]{}, fmt.Errorf("failed to iterate scan jobs: %w", err)
	}

	return pagination.NewResult(jobs, total, page), nil
}

// FindActive returns the non-terminal job for (target, job type).
func (r *ScanJobRepository) FindActive(ctx context.Context, targetID int, jobType scanjob.JobType) (*scanjob.ScanJob, error) {
	query := `
		SELECT ` + scanJobColumns + `
		FROM scan_jobs
		WHERE target_id = $1 AND job_type = $2 AND status IN ('pending', 'running')
		LIMIT 1
	`
	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, targetID, string(jobType)))
	if err != nil {
		return nil, err
	}
	r.attachActivity(job)
	return job, nil
}

// MarkRunning transitions a pending job to running.
func (r *ScanJobRepository) MarkRunning(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	query := `
		UPDATE scan_jobs
		SET status = 'running', started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + scanJobColumns

	now := time.Now().UTC()
	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id.String(), now))
	if err == nil {
		return job, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// No pending row matched; distinguish a missing job from a
	// status race.
	current, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, shared.NewDomainError("CONFLICT",
		fmt.Sprintf("job %s is %s, not pending", id, current.Status), shared.ErrConflict)
}

// UpdateProgress records a progress update for a running job. The
// store keeps the maximum percentage; stale or reordered reports can
// never move the bar backwards.
func (r *ScanJobRepository) UpdateProgress(ctx context.Context, id shared.ID, percent int, activity string) error {
	query := `
		UPDATE scan_jobs
		SET progress_percentage = GREATEST(progress_percentage, $2), updated_at = $3
		WHERE id = $1 AND status = 'running'
	`

	res, err := r.db.ExecContext(ctx, query, id.String(), percent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 && activity != "" {
		r.mu.Lock()
		r.activities[id] = activity
		r.mu.Unlock()
	}
	return nil
}

// Finalize transitions a job to a terminal status exactly once. When
// the job is already terminal the stored state is returned unchanged.
func (r *ScanJobRepository) Finalize(ctx context.Context, id shared.ID, status scanjob.Status, results json.RawMessage, errorMessage string) (*scanjob.ScanJob, error) {
	if !status.IsTerminal() {
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("%s is not a terminal status", status), shared.ErrValidation)
	}

	query := `
		UPDATE scan_jobs
		SET status = $2,
		    results = $3,
		    error_message = $4,
		    progress_percentage = CASE WHEN $2 = 'completed' THEN 100 ELSE progress_percentage END,
		    completed_at = $5,
		    updated_at = $5
		WHERE id = $1 AND status IN ('pending', 'running')
		RETURNING ` + scanJobColumns

	now := time.Now().UTC()
	job, err := r.scanJob(r.db.QueryRowContext(ctx, query,
		id.String(), string(status), jsonDoc(results, "{}"), nullString(errorMessage), now))
	if err == nil {
		r.mu.Lock()
		delete(r.activities, id)
		r.mu.Unlock()
		return job, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// Already terminal, or the job does not exist. The first writer
	// won; return whatever is stored.
	return r.GetByID(ctx, id)
}

// ListStaleRunning returns running jobs not updated since the cutoff.
func (r *ScanJobRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*scanjob.ScanJob, error) {
	query := `
		SELECT ` + scanJobColumns + `
		FROM scan_jobs
		WHERE status = 'running' AND updated_at < $1
		ORDER BY updated_at
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*scanjob.ScanJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns job counts by status for an organization.
func (r *ScanJobRepository) Stats(ctx context.Context, orgID shared.ID) (*scanjob.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM scan_jobs
		WHERE organization_id = $1
	`

	var stats scanjob.Stats
	err := r.db.QueryRowContext(ctx, query, orgID.String()).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Completed,
		&stats.Failed,
		&stats.Cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan job stats: %w", err)
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScanJobRepository) scanJob(row rowScanner) (*scanjob.ScanJob, error) {
	var (
		job       scanjob.ScanJob
		idStr     string
		orgStr    string
		createdBy string
		jobType   string
		priority  string
		status    string
		scanTypes []byte
		config    []byte
		results   []byte
		errMsg    sql.NullString
		startedAt sql.NullTime
		doneAt    sql.NullTime
	)

	err := row.Scan(
		&idStr,
		&job.TargetID,
		&orgStr,
		&createdBy,
		&jobType,
		&scanTypes,
		&priority,
		&config,
		&status,
		&job.ProgressPercentage,
		&results,
		&errMsg,
		&startedAt,
		&doneAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "scan job not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}

	job.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", idStr, err)
	}
	job.OrganizationID, err = shared.IDFromString(orgStr)
	if err != nil {
		return nil, fmt.Errorf("invalid organization id %q: %w", orgStr, err)
	}
	job.CreatedBy, err = shared.IDFromString(createdBy)
	if err != nil {
		return nil, fmt.Errorf("invalid created_by id %q: %w", createdBy, err)
	}
	if err := json.Unmarshal(scanTypes, &job.ScanTypes); err != nil {
		return nil, fmt.Errorf("invalid scan_types document: %w", err)
	}

	job.JobType = scanjob.JobType(jobType)
	job.Priority = scanjob.Priority(priority)
	job.Status = scanjob.Status(status)
	job.Config = json.RawMessage(config)
	// The column defaults to an empty object; the entity keeps nil
	// until aggregation writes real results.
	if !emptyJSONObject(results) {
		job.Results = json.RawMessage(results)
	}
	job.ErrorMessage = nullStringValue(errMsg)
	job.StartedAt = nullTimeValue(startedAt)
	job.CompletedAt = nullTimeValue(doneAt)
	return &job, nil
}

func (r *ScanJobRepository) attachActivity(job *scanjob.ScanJob) {
	if job.Status != scanjob.StatusRunning {
		return
	}
	r.mu.RLock()
	job.CurrentActivity = r.activities[job.ID]
	r.mu.RUnlock()
}

