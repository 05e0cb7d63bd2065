package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

const (
	// maxOutputBytes caps captured stdout per invocation. Tools that
	// exceed it are treated as failed rather than ballooning memory.
	maxOutputBytes = 64 << 20

	// defaultGracePeriod is how long a tool gets between SIGTERM and
	// SIGKILL on timeout or cancellation.
	defaultGracePeriod = 10 * time.Second
)

// Invocation records one tool execution for logging and spooling.
type Invocation struct {
	Tool     string
	Command  string
	Started  time.Time
	Duration time.Duration
	ExitCode int
	TimedOut bool
}

// Executor runs external tool processes.
type Executor struct {
	// GracePeriod between SIGTERM and SIGKILL. Zero means the
	// default.
	GracePeriod time.Duration
}

// capWriter fails the write once the limit is exceeded, which kills
// the pipe and terminates the child.
type capWriter struct {
	buf   bytes.Buffer
	limit int
}

var errOutputTooLarge = errors.New("tool output exceeds size limit")

func (w *capWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		return 0, errOutputTooLarge
	}
	return w.buf.Write(p)
}

// Run executes bin with args under ctx and the given timeout,
// returning captured stdout. On deadline or cancellation the process
// receives SIGTERM, then SIGKILL after the grace period. A non-zero
// exit, timeout or oversized output is reported as an error; partial
// output is still returned for spooling.
func (e *Executor) Run(ctx context.Context, tool, bin string, args []string, timeout time.Duration) ([]byte, Invocation, error) {
	grace := e.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout := &capWriter{limit: maxOutputBytes}
	var stderr bytes.Buffer

	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	inv := Invocation{
		Tool:    tool,
		Command: bin,
		Started: time.Now(),
	}

	err := cmd.Run()
	inv.Duration = time.Since(inv.Started)
	if cmd.ProcessState != nil {
		inv.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		switch {
		case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			inv.TimedOut = true
			return stdout.buf.Bytes(), inv, fmt.Errorf("%s timed out after %s", tool, timeout)
		case ctx.Err() != nil:
			return stdout.buf.Bytes(), inv, ctx.Err()
		case errors.Is(err, errOutputTooLarge):
			return stdout.buf.Bytes(), inv, fmt.Errorf("%s: %w", tool, errOutputTooLarge)
		default:
			return stdout.buf.Bytes(), inv, fmt.Errorf("%s exited with code %d: %s", tool, inv.ExitCode, firstLine(stderr.Bytes()))
		}
	}
	return stdout.buf.Bytes(), inv, nil
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return "no error output"
	}
	return s
}
