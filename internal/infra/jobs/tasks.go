// Package jobs provides background job dispatch and processing using
// Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
)

// Task types for scan jobs
const (
	TypeScanDispatch = "scan:dispatch"
)

// ScanDispatchPayload identifies the job to execute.
type ScanDispatchPayload struct {
	JobID string `json:"job_id"`
}

// NewScanDispatchTask creates a dispatch task for a scan job.
func NewScanDispatchTask(payload ScanDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	// MaxRetry 0: the runner records failures on the job itself, and
	// retrying a deterministic scan failure just reruns the tools.
	return asynq.NewTask(TypeScanDispatch, data, asynq.MaxRetry(0)), nil
}

// ScanTaskHandler executes dispatched scan jobs.
type ScanTaskHandler struct {
	runner *app.ScanRunner
	logger *logger.Logger
}

// NewScanTaskHandler creates a ScanTaskHandler.
func NewScanTaskHandler(runner *app.ScanRunner, log *logger.Logger) *ScanTaskHandler {
	return &ScanTaskHandler{
		runner: runner,
		logger: log.With("component", "scan_task_handler"),
	}
}

// HandleScanDispatch processes one dispatch task.
func (h *ScanTaskHandler) HandleScanDispatch(ctx context.Context, t *asynq.Task) error {
	var payload ScanDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	jobID, err := shared.IDFromString(payload.JobID)
	if err != nil {
		h.logger.Error("dropping task with malformed job id", "job_id", payload.JobID)
		return nil
	}

	return h.runner.Run(ctx, jobID)
}
