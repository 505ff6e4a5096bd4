//go:build !windows

package ipc

import "syscall"

// closeOnExec keeps an inherited descriptor out of the processes the worker
// starts in turn.
func closeOnExec(fd int) {
	syscall.CloseOnExec(fd)
}
