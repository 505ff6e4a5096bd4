package proc

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode_Nil(t *testing.T) {
	_, known := ExitCode(nil)
	assert.False(t, known)
}

func TestExitCode_Normal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cmd := exec.Command("sh", "-c", "exit 7")
	_ = cmd.Run()

	code, known := ExitCode(cmd.ProcessState)
	require.True(t, known)
	assert.Equal(t, 7, code)
}

func TestStop_ForceKillsIgnoringProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh and signals")
	}
	cmd := exec.Command("sh", "-c", "trap '' TERM; while true; do sleep 0.05; done")
	SetProcessGroup(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	// Give the shell a moment to install its trap.
	time.Sleep(100 * time.Millisecond)

	killed, err := Stop(cmd, done, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, killed, "process ignoring SIGTERM should have been force killed")

	_, known := ExitCode(cmd.ProcessState)
	assert.False(t, known, "a killed process has no exit code")
}

func TestStop_AlreadyExited(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cmd := exec.Command("sh", "-c", "exit 0")
	SetProcessGroup(cmd)
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	<-done

	killed, err := Stop(cmd, done, time.Second)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestStop_NilCommand(t *testing.T) {
	killed, err := Stop(nil, nil, time.Second)
	require.NoError(t, err)
	assert.False(t, killed)
}
