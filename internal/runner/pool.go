package runner

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/reconforge/api/internal/aggregate"
	"github.com/reconforge/api/internal/metrics"
	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
)

// DefaultParallelism bounds concurrent tool processes within one job.
const DefaultParallelism = 4

// Pool runs the enabled adapters of one scan job with bounded
// parallelism. Each adapter gets its own timeout; the pool survives
// individual adapter failures and reports them to the aggregator as
// failed inputs. Only cancellation of the whole job stops the run
// early.
type Pool struct {
	registry    *Registry
	exec        *Executor
	spool       *Spool
	parallelism int64
	log         *logger.Logger
}

// NewPool creates a pool. parallelism <= 0 selects the default.
func NewPool(registry *Registry, exec *Executor, spool *Spool, parallelism int, log *logger.Logger) *Pool {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Pool{
		registry:    registry,
		exec:        exec,
		spool:       spool,
		parallelism: int64(parallelism),
		log:         log.With("component", "runner"),
	}
}

// Run executes all enabled adapters for the job against target and
// returns their reports in adapter name order. Progress is the share
// of adapters that have finished, successfully or not; the activity
// string names whichever adapter most recently started or finished.
//
// Run returns ctx.Err() when the job was cancelled mid-flight, along
// with the reports of every adapter that completed before the cancel.
func (p *Pool) Run(ctx context.Context, jobID shared.ID, target string, jobType scanjob.JobType, cfg scanjob.JobConfig, tracker *ProgressTracker) ([]aggregate.Input, error) {
	adapters, err := p.registry.ForJob(jobType, cfg)
	if err != nil {
		return nil, err
	}

	tracker.Report(ctx, 0, "starting tool adapters")

	sem := semaphore.NewWeighted(p.parallelism)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inputs []aggregate.Input
		done   int
	)
	total := len(adapters)

	for _, a := range adapters {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			defer sem.Release(1)

			tracker.Report(ctx, progressFor(doneCount(&mu, &done), total), "running "+a.Name())
			in := p.runAdapter(ctx, jobID, target, a, cfg)

			mu.Lock()
			inputs = append(inputs, in)
			done++
			finished := done
			mu.Unlock()

			tracker.Report(ctx, progressFor(finished, total), "finished "+a.Name())
		}(a)
	}

	wg.Wait()

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Tool < inputs[j].Tool })

	if ctx.Err() != nil {
		return inputs, ctx.Err()
	}
	return inputs, nil
}

const tracerName = "github.com/reconforge/api/internal/runner"

func (p *Pool) runAdapter(ctx context.Context, jobID shared.ID, target string, a Adapter, cfg scanjob.JobConfig) aggregate.Input {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "adapter.run",
		trace.WithAttributes(
			attribute.String("adapter.tool", a.Name()),
			attribute.String("scanjob.id", jobID.String()),
		))
	defer span.End()

	log := p.log.With("job_id", jobID.String(), "tool", a.Name(), "target", target)

	bin, args := a.Command(target, cfg)
	raw, inv, err := p.exec.Run(ctx, a.Name(), bin, args, a.Timeout(cfg))
	p.spool.Write(jobID, a.Name(), raw)

	metrics.AdapterRunDuration.WithLabelValues(a.Name()).Observe(inv.Duration.Seconds())

	if err != nil {
		status := metrics.StatusFailed
		switch {
		case inv.TimedOut:
			status = metrics.StatusTimeout
		case errors.Is(err, context.Canceled):
			status = metrics.StatusCancelled
		}
		metrics.AdapterRunsTotal.WithLabelValues(a.Name(), status).Inc()
		span.RecordError(err)
		log.Warn("tool adapter failed",
			"duration", inv.Duration,
			"exit_code", inv.ExitCode,
			"error", err,
		)
		return aggregate.Input{Tool: a.Name(), Err: err}
	}

	var findings []finding.Finding
	if cp, ok := a.(ConfigParser); ok {
		findings, err = cp.ParseWithConfig(target, cfg, raw)
	} else {
		findings, err = a.Parse(target, raw)
	}
	if err != nil {
		metrics.AdapterRunsTotal.WithLabelValues(a.Name(), metrics.StatusFailed).Inc()
		span.RecordError(err)
		log.Warn("failed to parse tool output", "error", err)
		return aggregate.Input{Tool: a.Name(), Err: err}
	}

	metrics.AdapterRunsTotal.WithLabelValues(a.Name(), metrics.StatusOK).Inc()
	metrics.AdapterFindings.WithLabelValues(a.Name()).Observe(float64(len(findings)))
	log.Info("tool adapter finished",
		"duration", inv.Duration,
		"findings", len(findings),
	)
	return aggregate.Input{Tool: a.Name(), Findings: findings}
}

// progressFor is the rounded share of finished adapters.
func progressFor(done, total int) int {
	if total == 0 {
		return 100
	}
	return (200*done + total) / (2 * total)
}

func doneCount(mu *sync.Mutex, done *int) int {
	mu.Lock()
	defer mu.Unlock()
	return *done
}
