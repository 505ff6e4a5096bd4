package ipc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvFDs tells a worker which inherited descriptors carry the channel, as
// "<write>,<read>" from the worker's side.
const EnvFDs = "UNISTACK_IPC_FDS"

// First two ExtraFiles entries land on descriptors 3 and 4 in the child.
const (
	childWriteFD = 3
	childReadFD  = 4
)

// ErrNotSupervised is returned by OpenInherited when the process was not
// started by a supervisor.
var ErrNotSupervised = errors.New("ipc: no inherited channel (" + EnvFDs + " not set)")

// Pipes holds both ends of the two pipes that connect a supervisor to a
// worker.
type Pipes struct {
	parentRead  *os.File
	parentWrite *os.File
	childRead   *os.File
	childWrite  *os.File
}

// NewPipes creates the pipe pair for a worker that is about to be started.
func NewPipes() (*Pipes, error) {
	upR, upW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating status pipe: %w", err)
	}
	downR, downW, err := os.Pipe()
	if err != nil {
		_ = upR.Close()
		_ = upW.Close()
		return nil, fmt.Errorf("creating command pipe: %w", err)
	}
	return &Pipes{
		parentRead:  upR,
		childWrite:  upW,
		childRead:   downR,
		parentWrite: downW,
	}, nil
}

// ExtraFiles returns the descriptors to hand to exec.Cmd.ExtraFiles.
func (p *Pipes) ExtraFiles() []*os.File {
	return []*os.File{p.childWrite, p.childRead}
}

// Env returns the environment assignment the worker needs to find its ends.
func (p *Pipes) Env() string {
	return EnvFDs + "=" + strconv.Itoa(childWriteFD) + "," + strconv.Itoa(childReadFD)
}

// Channel wraps the supervisor's ends.
func (p *Pipes) Channel() *Channel {
	return NewChannel(p.parentRead, p.parentWrite)
}

// CloseChildEnds releases the worker's ends in this process once the worker
// has been started, so that EOF is observed when the worker exits.
func (p *Pipes) CloseChildEnds() error {
	return errors.Join(p.childWrite.Close(), p.childRead.Close())
}

// Close releases every end. Used when starting the worker failed.
func (p *Pipes) Close() error {
	return errors.Join(p.CloseChildEnds(), p.parentRead.Close(), p.parentWrite.Close())
}

// OpenInherited opens the channel a supervisor handed to this process.
func OpenInherited() (*Channel, error) {
	fds := os.Getenv(EnvFDs)
	if fds == "" {
		return nil, ErrNotSupervised
	}
	parts := strings.Split(fds, ",")
	if len(parts) != 2 { //nolint:mnd // write,read
		return nil, fmt.Errorf("ipc: malformed %s=%q", EnvFDs, fds)
	}
	writeFD, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("ipc: malformed %s=%q: %w", EnvFDs, fds, err)
	}
	readFD, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("ipc: malformed %s=%q: %w", EnvFDs, fds, err)
	}

	closeOnExec(writeFD)
	closeOnExec(readFD)
	w := os.NewFile(uintptr(writeFD), "unistack-ipc-status")
	r := os.NewFile(uintptr(readFD), "unistack-ipc-command")
	if w == nil || r == nil {
		return nil, fmt.Errorf("ipc: invalid descriptors %s=%q", EnvFDs, fds)
	}
	return NewChannel(r, w), nil
}
