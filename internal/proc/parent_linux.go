package proc

import (
	"os/exec"
	"syscall"
)

// BindToParent has the kernel SIGKILL cmd when the process that started it
// dies, so it cannot outlive a worker that was force-killed.
func BindToParent(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
