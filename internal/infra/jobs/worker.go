package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Concurrency bounds the number of scan jobs executing at once
	// in this process. Per-job tool parallelism is bounded separately
	// by the runner pool.
	Concurrency int
}

// Worker processes dispatched scan jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a new background job worker. Queues are strict:
// an urgent job is always dispatched before anything in a lower
// queue.
func NewWorker(cfg WorkerConfig, runner *app.ScanRunner, log *logger.Logger) (*Worker, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive, got %d", cfg.Concurrency)
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				scanjob.PriorityUrgent.Queue(): 8,
				scanjob.PriorityHigh.Queue():   4,
				scanjob.PriorityMedium.Queue(): 2,
				scanjob.PriorityLow.Queue():    1,
			},
			StrictPriority: true,
		},
	)

	mux := asynq.NewServeMux()
	handler := NewScanTaskHandler(runner, log)
	mux.HandleFunc(TypeScanDispatch, handler.HandleScanDispatch)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log,
	}, nil
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until shutdown.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}
