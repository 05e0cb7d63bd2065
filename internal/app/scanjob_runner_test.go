package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/reconforge/api/internal/infra/memory"
	"github.com/reconforge/api/internal/runner"
	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptAdapter runs a shell snippet and parses each stdout line into
// a subdomain finding.
type scriptAdapter struct {
	name   string
	script string
}

func (a *scriptAdapter) Name() string { return a.name }

func (a *scriptAdapter) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeSubdomainScan}
}

func (a *scriptAdapter) Enabled(scanjob.JobConfig) bool { return true }

func (a *scriptAdapter) Command(string, scanjob.JobConfig) (string, []string) {
	return "sh", []string{"-c", a.script}
}

func (a *scriptAdapter) Timeout(scanjob.JobConfig) time.Duration { return 10 * time.Second }

func (a *scriptAdapter) Parse(_ string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	for _, line := range splitLines(raw) {
		findings = append(findings, finding.Finding{Type: finding.TypeSubdomain, Value: line})
	}
	return findings, nil
}

func splitLines(raw []byte) []string {
	var lines []string
	start := 0
	for i, b := range raw {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(raw[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, string(raw[start:]))
	}
	return lines
}

type runnerFixture struct {
	runner  *ScanRunner
	jobs    *memory.ScanJobRepository
	targets *memory.TargetRepository
	jobID   shared.ID
	tgt     *target.Target
}

func newRunnerFixture(t *testing.T, adapters ...runner.Adapter) *runnerFixture {
	t.Helper()

	jobs := memory.NewScanJobRepository()
	targets := memory.NewTargetRepository()

	orgID := shared.NewID()
	tgt, err := target.New(orgID, "example.com")
	require.NoError(t, err)
	require.NoError(t, targets.Create(context.Background(), tgt))

	job, err := scanjob.NewScanJob(tgt.ID, orgID, shared.NewID(), scanjob.JobTypeSubdomainScan, nil, "", nil)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))

	log := testLogger()
	pool := runner.NewPool(runner.NewRegistry(adapters...), &runner.Executor{GracePeriod: time.Second}, nil, 2, log)
	scanRunner := NewScanRunner(jobs, targets, pool, runner.NewCancelRegistry(), nil, []string{"admin"}, log)

	return &runnerFixture{runner: scanRunner, jobs: jobs, targets: targets, jobID: job.ID, tgt: tgt}
}

func (f *runnerFixture) finalJob(t *testing.T) *scanjob.ScanJob {
	t.Helper()
	job, err := f.jobs.GetByID(context.Background(), f.jobID)
	require.NoError(t, err)
	return job
}

func decodeResults(t *testing.T, job *scanjob.ScanJob) *finding.AggregatedResult {
	t.Helper()
	var result finding.AggregatedResult
	require.NoError(t, json.Unmarshal(job.Results, &result))
	return &result
}

func TestScanRunner_CompletedJob(t *testing.T) {
	f := newRunnerFixture(t,
		&scriptAdapter{name: "alpha", script: "echo api.example.com; echo admin.example.com"},
		&scriptAdapter{name: "beta", script: "echo api.example.com"},
	)

	require.NoError(t, f.runner.Run(context.Background(), f.jobID))

	job := f.finalJob(t)
	assert.Equal(t, scanjob.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.ProgressPercentage)
	assert.Empty(t, job.ErrorMessage)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	result := decodeResults(t, job)
	assert.Equal(t, 2, result.TotalUnique)
	assert.Equal(t, 1, result.InterestingCount)

	// Completed subdomain scans refresh the target's counters.
	tgt, err := f.targets.GetByID(context.Background(), f.tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, tgt.Stats.Subdomains)
	assert.False(t, tgt.Stats.LastUpdated.IsZero())
}

func TestScanRunner_PartialFailureStillCompletes(t *testing.T) {
	f := newRunnerFixture(t,
		&scriptAdapter{name: "alpha", script: "echo api.example.com"},
		&scriptAdapter{name: "beta", script: "echo nope >&2; exit 1"},
	)

	require.NoError(t, f.runner.Run(context.Background(), f.jobID))

	job := f.finalJob(t)
	assert.Equal(t, scanjob.StatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMessage)

	result := decodeResults(t, job)
	assert.Equal(t, 1, result.TotalUnique)
	assert.Equal(t, finding.ToolStatusFailed, result.Tools["beta"].Status)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "beta")
}

func TestScanRunner_AllAdaptersFailedFailsJob(t *testing.T) {
	f := newRunnerFixture(t,
		&scriptAdapter{name: "alpha", script: "exit 1"},
		&scriptAdapter{name: "beta", script: "exit 2"},
	)

	require.NoError(t, f.runner.Run(context.Background(), f.jobID))

	job := f.finalJob(t)
	assert.Equal(t, scanjob.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "all adapters failed")
	assert.Contains(t, job.ErrorMessage, "alpha:")
	assert.Contains(t, job.ErrorMessage, "beta:")
	assert.Nil(t, job.Results)
}

func TestScanRunner_CancelledMidRunKeepsPartialResults(t *testing.T) {
	f := newRunnerFixture(t,
		&scriptAdapter{name: "alpha", script: "echo api.example.com"},
		&scriptAdapter{name: "omega", script: "sleep 30"},
	)

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(context.Background(), f.jobID) }()

	// Wait for the job to claim running, give the fast adapter time
	// to finish, then cancel the way the stop relay does.
	require.Eventually(t, func() bool {
		return f.runner.Cancels().Len() == 1
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	require.True(t, f.runner.Cancels().Cancel(f.jobID))

	require.NoError(t, <-done)

	job := f.finalJob(t)
	assert.Equal(t, scanjob.StatusCancelled, job.Status)
	assert.Empty(t, job.ErrorMessage)

	result := decodeResults(t, job)
	// Whatever completed before the cancel is preserved.
	assert.Equal(t, finding.ToolStatusOK, result.Tools["alpha"].Status)
}

func TestScanRunner_SkipsJobCancelledBeforeDispatch(t *testing.T) {
	f := newRunnerFixture(t, &scriptAdapter{name: "alpha", script: "echo x"})

	_, err := f.jobs.Finalize(context.Background(), f.jobID, scanjob.StatusCancelled, nil, "")
	require.NoError(t, err)

	require.NoError(t, f.runner.Run(context.Background(), f.jobID))

	job := f.finalJob(t)
	assert.Equal(t, scanjob.StatusCancelled, job.Status)
	assert.Nil(t, job.StartedAt)
}

func TestScanRunner_MissingJobIsDropped(t *testing.T) {
	f := newRunnerFixture(t, &scriptAdapter{name: "alpha", script: "echo x"})

	assert.NoError(t, f.runner.Run(context.Background(), shared.NewID()))
}

func TestScanRunner_MissingTargetFailsJob(t *testing.T) {
	jobs := memory.NewScanJobRepository()
	targets := memory.NewTargetRepository()

	job, err := scanjob.NewScanJob(42, shared.NewID(), shared.NewID(), scanjob.JobTypeSubdomainScan, nil, "", nil)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))

	log := testLogger()
	pool := runner.NewPool(runner.NewRegistry(&scriptAdapter{name: "alpha", script: "echo x"}), &runner.Executor{}, nil, 1, log)
	scanRunner := NewScanRunner(jobs, targets, pool, runner.NewCancelRegistry(), nil, nil, log)

	require.NoError(t, scanRunner.Run(context.Background(), job.ID))

	final, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, scanjob.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "target no longer exists")
}

func TestOutcome(t *testing.T) {
	ok := &finding.AggregatedResult{
		Tools: map[string]finding.ToolStat{"alpha": {Status: finding.ToolStatusOK}},
	}
	status, results, errMsg := outcome(ok, nil)
	assert.Equal(t, scanjob.StatusCompleted, status)
	assert.NotEmpty(t, results)
	assert.Empty(t, errMsg)

	allFailed := &finding.AggregatedResult{
		Tools: map[string]finding.ToolStat{
			"alpha": {Status: finding.ToolStatusFailed, Error: "timed out"},
			"beta":  {Status: finding.ToolStatusFailed, Error: "exit status 2"},
		},
	}
	status, results, errMsg = outcome(allFailed, nil)
	assert.Equal(t, scanjob.StatusFailed, status)
	assert.Nil(t, results)
	assert.Equal(t, "all adapters failed: alpha: timed out; beta: exit status 2", errMsg)

	status, results, errMsg = outcome(ok, context.Canceled)
	assert.Equal(t, scanjob.StatusCancelled, status)
	assert.NotEmpty(t, results)
	assert.Empty(t, errMsg)

	// A pool error that is not a cancellation fails the job with the
	// error text instead of masquerading as cancelled.
	status, results, errMsg = outcome(ok, errors.New("job config enables no adapter"))
	assert.Equal(t, scanjob.StatusFailed, status)
	assert.Nil(t, results)
	assert.Equal(t, "job config enables no adapter", errMsg)
}

// stopRacingJobs delivers a stop broadcast at the exact moment the
// running transition commits.
type stopRacingJobs struct {
	*memory.ScanJobRepository
	cancels   *runner.CancelRegistry
	delivered bool
}

func (s *stopRacingJobs) MarkRunning(ctx context.Context, id shared.ID) (*scanjob.ScanJob, error) {
	s.delivered = s.cancels.Cancel(id)
	return s.ScanJobRepository.MarkRunning(ctx, id)
}

func TestScanRunner_StopRacingRunningTransitionInterruptsWork(t *testing.T) {
	jobs := memory.NewScanJobRepository()
	targets := memory.NewTargetRepository()

	orgID := shared.NewID()
	tgt, err := target.New(orgID, "example.com")
	require.NoError(t, err)
	require.NoError(t, targets.Create(context.Background(), tgt))

	job, err := scanjob.NewScanJob(tgt.ID, orgID, shared.NewID(), scanjob.JobTypeSubdomainScan, nil, "", nil)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))

	log := testLogger()
	cancels := runner.NewCancelRegistry()
	racing := &stopRacingJobs{ScanJobRepository: jobs, cancels: cancels}
	pool := runner.NewPool(
		runner.NewRegistry(&scriptAdapter{name: "alpha", script: "sleep 30"}),
		&runner.Executor{GracePeriod: time.Second}, nil, 2, log,
	)
	scanRunner := NewScanRunner(racing, targets, pool, cancels, nil, nil, log)

	start := time.Now()
	require.NoError(t, scanRunner.Run(context.Background(), job.ID))

	// The cancel hook was already registered when the stop landed, so
	// the broadcast found it and the tools never ran to completion.
	require.True(t, racing.delivered)
	assert.Less(t, time.Since(start), 15*time.Second)

	final, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, scanjob.StatusCancelled, final.Status)
}

func TestScanRunner_EmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := newRunnerFixture(t,
		&scriptAdapter{name: "alpha", script: "echo a.example.com"},
	)
	require.NoError(t, f.runner.Run(context.Background(), f.jobID))

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "scanjob.run")
	assert.Contains(t, names, "adapter.run")
}
