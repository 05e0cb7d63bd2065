package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Run(t *testing.T) {
	exec := &Executor{}

	raw, inv, err := exec.Run(context.Background(), "echo", "sh", []string{"-c", "echo hello"}, 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(raw))
	assert.Equal(t, 0, inv.ExitCode)
	assert.False(t, inv.TimedOut)
	assert.Greater(t, inv.Duration, time.Duration(0))
}

func TestExecutor_NonZeroExit(t *testing.T) {
	exec := &Executor{}

	raw, inv, err := exec.Run(context.Background(), "tool", "sh", []string{"-c", "echo partial; echo broken pipe >&2; exit 3"}, 10*time.Second)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, 3, inv.ExitCode)
	// Partial output is still returned for spooling.
	assert.Equal(t, "partial\n", string(raw))
}

func TestExecutor_Timeout(t *testing.T) {
	exec := &Executor{GracePeriod: time.Second}

	start := time.Now()
	_, inv, err := exec.Run(context.Background(), "slow", "sleep", []string{"30"}, 100*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, inv.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutor_Cancelled(t *testing.T) {
	exec := &Executor{GracePeriod: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, inv, err := exec.Run(ctx, "slow", "sleep", []string{"30"}, time.Minute)

	require.ErrorIs(t, err, context.Canceled)
	// Cancellation is not a timeout.
	assert.False(t, inv.TimedOut)
}

func TestExecutor_MissingBinary(t *testing.T) {
	exec := &Executor{}

	_, _, err := exec.Run(context.Background(), "ghost", "definitely-not-a-real-binary-xyz", nil, time.Second)

	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", firstLine([]byte("first\nsecond\n")))
	assert.Equal(t, "only", firstLine([]byte("  only  ")))
	assert.Equal(t, "no error output", firstLine(nil))
}
