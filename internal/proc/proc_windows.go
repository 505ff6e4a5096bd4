//go:build windows

package proc

import (
	"os"
	"os/exec"
)

// SetProcessGroup is a no-op on Windows.
func SetProcessGroup(_ *exec.Cmd) {}

// Terminate kills p; Windows has no SIGTERM.
func Terminate(p *os.Process) error {
	return p.Kill()
}

// Kill kills p.
func Kill(p *os.Process) error {
	return p.Kill()
}
