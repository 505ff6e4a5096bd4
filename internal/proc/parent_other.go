//go:build !linux

package proc

import "os/exec"

// BindToParent is a no-op where the kernel offers no parent-death signal.
// The worker stops its children itself on a graceful exit.
func BindToParent(_ *exec.Cmd) {}
