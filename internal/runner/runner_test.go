package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/unistack/internal/ish"
)

func sleeper(t *testing.T, script string) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	r := New(Config{
		Cmd:         ish.Cmd{Name: "sh", Args: []string{"-c", script}},
		GracePeriod: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func running(r *Runner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runningLocked()
}

func starts(r *Runner) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func TestRunner_StartStop(t *testing.T) {
	r := sleeper(t, "sleep 30")

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, running(r))
	assert.NotZero(t, r.PID())

	// Starting again keeps the same process.
	pid := r.PID()
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, pid, r.PID())
	assert.Equal(t, 1, starts(r))

	require.NoError(t, r.Stop())
	assert.False(t, running(r))
	assert.Zero(t, r.PID())
	require.NoError(t, r.Stop())
}

func TestRunner_Restart(t *testing.T) {
	r := sleeper(t, "sleep 30")

	require.NoError(t, r.Start(context.Background()))
	first := r.PID()

	require.NoError(t, r.Restart(context.Background()))
	assert.True(t, running(r))
	assert.NotEqual(t, first, r.PID())
	assert.Equal(t, 2, starts(r))
}

func TestRunner_StopForceKills(t *testing.T) {
	r := sleeper(t, `trap "" TERM; while :; do sleep 0.1; done`)

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Stop())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, running(r))
}

func TestRunner_ExitedServerIsNotRunning(t *testing.T) {
	r := sleeper(t, "exit 0")

	require.NoError(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return !running(r) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Stop())
}

func TestRunner_StartFailure(t *testing.T) {
	r := New(Config{Cmd: ish.Cmd{Name: "unistack-no-such-server"}})
	require.Error(t, r.Start(context.Background()))
	assert.False(t, running(r))
}

func TestRunner_CloseBlocksLaterStarts(t *testing.T) {
	r := sleeper(t, "sleep 30")

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Close())
	assert.False(t, running(r))

	require.NoError(t, r.Restart(context.Background()))
	require.NoError(t, r.Start(context.Background()))
	assert.False(t, running(r))
	assert.Equal(t, 1, starts(r))
	require.NoError(t, r.Close())
}
