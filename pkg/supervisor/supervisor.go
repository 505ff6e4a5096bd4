// Package supervisor starts the core worker, waits for its handshake, relays
// its status events and tears it down.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/proc"
	"github.com/yaklabco/unistack/pkg/fault"
	"github.com/yaklabco/unistack/pkg/ipc"
)

// Defaults.
const (
	DefaultReadyTimeout       = 10 * time.Second
	DefaultGracePeriod        = 5 * time.Second
	DefaultProtocolConstraint = "^1"
)

// Startup error codes.
const (
	CodeReadyTimeout      = "READY_TIMEOUT"
	CodeExitedBeforeReady = "CORE_EXITED_BEFORE_READY"
	CodeProtocolMismatch  = "PROTOCOL_MISMATCH"
	CodeSpawnFailed       = "CORE_SPAWN_FAILED"
)

// Callbacks receive status events by kind. A nil callback logs the event.
type Callbacks struct {
	OnError           func(ipc.Status)
	OnSuccess         func(ipc.Status)
	OnCommandNotFound func(ipc.Status)
	OnBundleBuilt     func(ipc.Status)

	// OnStatusNotFound receives statuses of a type this supervisor does not
	// know.
	OnStatusNotFound func(ipc.Status)
}

// Config configures a Supervisor.
type Config struct {
	// Command and Args start the worker.
	Command string
	Args    []string

	// Dir is the worker's working directory, the environment root.
	Dir string

	// Env is appended to the current environment.
	Env []string

	ReadyTimeout time.Duration
	GracePeriod  time.Duration

	// ProtocolConstraint is checked against the version the worker
	// announces in its handshake.
	ProtocolConstraint string

	Stdout io.Writer
	Stderr io.Writer

	Callbacks Callbacks
	Logger    *slog.Logger
}

// Supervisor owns the lifecycle of worker processes.
type Supervisor struct {
	cfg        Config
	logger     *slog.Logger
	constraint *semver.Constraints
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, errors.New("supervisor: worker command is required")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ProtocolConstraint == "" {
		cfg.ProtocolConstraint = DefaultProtocolConstraint
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	constraint, err := semver.NewConstraint(cfg.ProtocolConstraint)
	if err != nil {
		return nil, fmt.Errorf("parsing protocol constraint %q: %w", cfg.ProtocolConstraint, err)
	}

	return &Supervisor{
		cfg:        cfg,
		logger:     log.OrDefault(cfg.Logger),
		constraint: constraint,
	}, nil
}

// Spawn starts a worker and returns once it has announced readiness. Any
// other outcome is a startup error and leaves no process behind.
func (s *Supervisor) Spawn(ctx context.Context) (*Handle, error) {
	pipes, err := ipc.NewPipes()
	if err != nil {
		return nil, fault.Wrap(CodeSpawnFailed, nil, err)
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...) //nolint:gosec // the worker command is our own binary
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(append(os.Environ(), s.cfg.Env...), pipes.Env())
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	cmd.ExtraFiles = pipes.ExtraFiles()
	proc.SetProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = pipes.Close()
		return nil, fault.Wrap(CodeSpawnFailed, map[string]string{"command": s.cfg.Command}, err)
	}
	// The worker holds its own copies now; ours must go so that its exit is
	// seen as EOF.
	if err := pipes.CloseChildEnds(); err != nil {
		s.logger.Warn("closing worker pipe ends", slog.Any(log.Error, err))
	}

	h := &Handle{
		sup:       s,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		channel:   pipes.Channel(),
		exited:    make(chan struct{}),
		forwarded: make(chan struct{}),
	}
	h.logger = s.logger.With(slog.Int(log.PID, h.pid))
	h.logger.Debug("core spawned", slog.String(log.Cmd, s.cfg.Command), slog.String(log.Dir, s.cfg.Dir))

	go h.wait()

	if err := h.handshake(ctx); err != nil {
		close(h.forwarded)
		destroyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.cfg.GracePeriod)
		defer cancel()
		if derr := h.Destroy(destroyCtx); derr != nil {
			h.logger.Warn("destroying core after failed startup", slog.Any(log.Error, derr))
		}
		return nil, err
	}

	go h.forward()
	return h, nil
}

// checkProtocol accepts an empty version; the base protocol has no payload.
func (s *Supervisor) checkProtocol(version string) error {
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fault.Wrap(CodeProtocolMismatch, map[string]string{"protocol": version}, err)
	}
	if !s.constraint.Check(v) {
		return fault.Coded(CodeProtocolMismatch, map[string]string{
			"protocol":   version,
			"constraint": s.cfg.ProtocolConstraint,
		})
	}
	return nil
}

// Handle is a running worker.
type Handle struct {
	sup     *Supervisor
	cmd     *exec.Cmd
	pid     int
	channel *ipc.Channel
	logger  *slog.Logger

	exited    chan struct{}
	forwarded chan struct{}

	mu    sync.Mutex
	state *os.ProcessState

	destroyOnce sync.Once
	destroyErr  error
}

// PID returns the worker's process ID.
func (h *Handle) PID() int {
	return h.pid
}

// Channel returns the IPC channel to the worker.
func (h *Handle) Channel() *ipc.Channel {
	return h.channel
}

// Send delivers a command to the worker.
func (h *Handle) Send(cmd ipc.Command) error {
	return h.channel.SendCommand(cmd)
}

// Exited is closed once the worker has exited and its exit status has been
// dispatched.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitCode returns the worker's exit code. known is false while it runs and
// when it was killed by a signal.
func (h *Handle) ExitCode() (code int, known bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return proc.ExitCode(h.state)
}

// Terminate asks the worker to shut down gracefully and then destroys it.
func (h *Handle) Terminate(ctx context.Context) error {
	if err := h.Send(ipc.Terminate()); err != nil && !errors.Is(err, ipc.ErrClosed) {
		h.logger.Warn("sending terminate", slog.Any(log.Error, err))
	}
	return h.Destroy(ctx)
}

// Destroy disconnects the channel, gives the worker the grace period to exit,
// then kills its process group. It returns once the exit is confirmed or ctx
// ends. It is safe to call more than once.
func (h *Handle) Destroy(ctx context.Context) error {
	h.destroyOnce.Do(func() {
		h.destroyErr = h.destroy(ctx)
	})
	return h.destroyErr
}

func (h *Handle) destroy(ctx context.Context) error {
	if err := h.channel.Close(); err != nil {
		h.logger.Debug("closing core channel", slog.Any(log.Error, err))
	}

	timer := time.NewTimer(h.sup.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-h.exited:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	h.logger.Warn("core did not exit in time, killing")
	if err := proc.Kill(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing core: %w", err)
	}

	select {
	case <-h.exited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for core to exit: %w", ctx.Err())
	}
}

func (h *Handle) handshake(ctx context.Context) error {
	timer := time.NewTimer(h.sup.cfg.ReadyTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-h.channel.Incoming():
			if !ok {
				return fault.Coded(CodeExitedBeforeReady, nil)
			}
			if msg.Type == ipc.TypeCoreReady {
				return h.ready(msg)
			}
			h.dispatch(msg)
		case <-timer.C:
			return fault.Coded(CodeReadyTimeout, map[string]string{
				"timeout": h.sup.cfg.ReadyTimeout.String(),
			})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Handle) ready(msg ipc.Message) error {
	var ready ipc.Ready
	if err := msg.Decode(&ready); err != nil && !errors.Is(err, ipc.ErrNoPayload) {
		return fault.Wrap(CodeProtocolMismatch, nil, err)
	}
	if err := h.sup.checkProtocol(ready.Protocol); err != nil {
		return err
	}
	h.logger.Info("core ready", slog.String(log.Protocol, ready.Protocol))
	return nil
}

// forward relays everything the worker sends after the handshake.
func (h *Handle) forward() {
	defer close(h.forwarded)
	for msg := range h.channel.Incoming() {
		h.dispatch(msg)
	}
	if err := h.channel.Err(); err != nil {
		h.logger.Warn("core channel broken", slog.Any(log.Error, err))
	}
}

func (h *Handle) dispatch(msg ipc.Message) {
	switch msg.Type {
	case ipc.TypeCoreStatus:
		var status ipc.Status
		if err := msg.Decode(&status); err != nil {
			h.logger.Warn("malformed core status", slog.Any(log.Error, err))
			return
		}
		h.sup.HandleStatus(status)
	case ipc.TypeCoreReady:
		h.logger.Debug("duplicate core ready ignored")
	default:
		h.logger.Warn("unknown message from core", slog.String(log.Type, string(msg.Type)))
	}
}

// wait reaps the worker and dispatches its exit classification. Status
// events the worker sent before exiting are dispatched first.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.state = h.cmd.ProcessState
	h.mu.Unlock()

	select {
	case <-h.forwarded:
	case <-time.After(h.sup.cfg.GracePeriod):
	}

	code, known := proc.ExitCode(h.cmd.ProcessState)
	attrs := []any{slog.Bool("known", known)}
	if known {
		attrs = append(attrs, slog.Int(log.Code, code))
	}
	if err != nil {
		attrs = append(attrs, slog.Any(log.Error, err))
	}
	h.logger.Debug("core exited", attrs...)

	_ = h.channel.Close()
	h.sup.HandleExitStatus(code, known)
	close(h.exited)
}

