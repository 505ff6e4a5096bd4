// Package runner keeps the built node bundle running as a child server.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/yaklabco/unistack/internal/ish"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/proc"
)

// DefaultGracePeriod is how long a server is given to exit after SIGTERM.
const DefaultGracePeriod = 5 * time.Second

// Config configures a Runner.
type Config struct {
	Cmd         ish.Cmd
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// Runner owns at most one server process at a time. The process runs in its
// own process group, so stopping it also stops whatever it spawned, and it is
// bound to this process, so it dies with the worker even when the worker is
// killed.
type Runner struct {
	cmd    ish.Cmd
	grace  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	current *exec.Cmd
	done    chan struct{}
	starts  int
	closed  bool
}

// New creates a Runner. Nothing runs until Start.
func New(cfg Config) *Runner {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Runner{
		cmd:    cfg.Cmd,
		grace:  grace,
		logger: log.OrDefault(cfg.Logger),
	}
}

// Start launches the server unless one is already running. After Close it
// does nothing.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(ctx)
}

func (r *Runner) startLocked(ctx context.Context) error {
	if r.closed {
		r.logger.Debug("node server closed, not starting")
		return nil
	}
	if r.runningLocked() {
		return nil
	}

	cmd := r.cmd.Command(context.WithoutCancel(ctx))
	proc.SetProcessGroup(cmd)
	proc.BindToParent(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting node server: %w", err)
	}

	done := make(chan struct{})
	r.current = cmd
	r.done = done
	r.starts++

	logger := r.logger.With(slog.Int(log.PID, cmd.Process.Pid))
	logger.Info("node server started", slog.String(log.Cmd, cmd.Path))

	go func() {
		err := cmd.Wait()
		close(done)
		if code, known := proc.ExitCode(cmd.ProcessState); known && code == 0 {
			logger.Info("node server exited")
			return
		}
		logger.Warn("node server exited", slog.Any(log.Error, err))
	}()
	return nil
}

// Stop terminates the running server, force-killing it after the grace
// period. Stopping when nothing runs is a no-op.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Runner) stopLocked() error {
	if r.current == nil {
		return nil
	}
	cmd, done := r.current, r.done
	r.current, r.done = nil, nil

	forced, err := proc.Stop(cmd, done, r.grace)
	if err != nil {
		return fmt.Errorf("stopping node server: %w", err)
	}
	if forced {
		r.logger.Warn("node server killed after grace period", slog.Int(log.PID, cmd.Process.Pid))
	}
	return nil
}

// Close stops the running server and keeps it from starting again, so a
// rebuild that finishes during shutdown cannot bring it back.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.stopLocked()
}

// Restart stops the running server, if any, and starts a new one.
func (r *Runner) Restart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.stopLocked(); err != nil {
		return err
	}
	return r.startLocked(ctx)
}

func (r *Runner) runningLocked() bool {
	if r.current == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// PID returns the process ID of the running server, or 0.
func (r *Runner) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.runningLocked() {
		return 0
	}
	return r.current.Process.Pid
}
