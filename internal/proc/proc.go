// Package proc holds process-group helpers for the child processes unistack
// starts: the core worker and the node bundle server.
package proc

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// ExitCode reports the exit code of a finished process. known is false when
// the process did not exit normally (killed by a signal, never started).
func ExitCode(state *os.ProcessState) (code int, known bool) {
	if state == nil {
		return 0, false
	}
	code = state.ExitCode()
	if code < 0 {
		return 0, false
	}
	return code, true
}

// Stop asks the process group of cmd to terminate and force-kills it if done
// is not closed within grace. It reports whether a force kill was needed.
func Stop(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) (bool, error) {
	if cmd == nil || cmd.Process == nil {
		return false, nil
	}
	select {
	case <-done:
		return false, nil
	default:
	}

	if err := Terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return false, err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return false, nil
	case <-timer.C:
	}

	if err := Kill(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return true, err
	}
	<-done
	return true, nil
}
