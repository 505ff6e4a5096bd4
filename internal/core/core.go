// Package core is the supervised worker: it watches the environment's source
// tree, rebuilds the bundles a change affects and notifies live reload
// clients, reporting to the supervisor over the IPC channel.
package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yaklabco/unistack/config"
	"github.com/yaklabco/unistack/internal/bundle"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/rebuild"
	"github.com/yaklabco/unistack/pkg/ipc"
	"github.com/yaklabco/unistack/pkg/supervisor"
)

// Options adjusts how New wires the worker.
type Options struct {
	// Node and Browser replace the command builders from the config.
	Node    bundle.Builder
	Browser bundle.Builder

	// Registry collects the worker's metrics. A fresh registry is used when
	// nil.
	Registry *prometheus.Registry

	// Protocol is announced in the handshake. Defaults to ipc.ProtocolVersion.
	Protocol string

	// Stdout and Stderr receive the output of bundlers and the node server.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// Core is the worker process.
type Core struct {
	ch       *ipc.Channel
	state    *State
	logger   *slog.Logger
	protocol string

	// ctx is the context of Run, used by the rebuilds the throttle fires.
	ctx context.Context //nolint:containedctx // timer callbacks have no caller context

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// New builds the worker's state from cfg. Nothing runs until Run.
func New(cfg *config.Config, ch *ipc.Channel, opts Options) (*Core, error) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Protocol == "" {
		opts.Protocol = ipc.ProtocolVersion
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	c := &Core{
		ch:       ch,
		logger:   log.OrDefault(opts.Logger),
		protocol: opts.Protocol,
		ctx:      context.Background(),
	}

	state, err := newState(cfg, stateDeps{
		node:     opts.Node,
		browser:  opts.Browser,
		registry: opts.Registry,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		logger:   c.logger,
		fire:     c.rebuild,
		report:   c.report,
	})
	if err != nil {
		return nil, err
	}
	c.state = state
	return c, nil
}

// State returns the worker's state.
func (c *Core) State() *State {
	return c.state
}

// Run performs the handshake, starts the dev environment and serves commands
// until terminated. It returns the process exit code: supervisor.ExitGraceful
// after a clean stop, supervisor.ExitStartup when the environment could not
// start.
func (c *Core) Run(ctx context.Context) int {
	c.ctx = ctx

	if err := c.ch.SendReady(ipc.Ready{Protocol: c.protocol, PID: os.Getpid()}); err != nil {
		c.logger.Error("handshake failed", slog.Any(log.Error, err))
		_ = c.StopDevEnvironment(ctx)
		return supervisor.ExitStartup
	}

	if err := c.StartDevEnvironment(ctx); err != nil {
		c.logger.Error("failed to start dev environment", slog.Any(log.Error, err))
		c.send(ipc.ErrorStatus(err))
		_ = c.StopDevEnvironment(ctx)
		return supervisor.ExitStartup
	}

	c.ListenToCLI(ctx)

	if err := c.StopDevEnvironment(ctx); err != nil {
		c.logger.Warn("stopping dev environment", slog.Any(log.Error, err))
	}
	return supervisor.ExitGraceful
}

// ListenToCLI handles commands until a terminate command arrives, the
// supervisor disconnects or ctx is done.
func (c *Core) ListenToCLI(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.ch.Incoming():
			if !ok {
				c.logger.Info("supervisor disconnected")
				return
			}
			if msg.Type != ipc.TypeCLICommand {
				c.logger.Warn("unknown message from supervisor", slog.String(log.Type, string(msg.Type)))
				continue
			}
			var cmd ipc.Command
			if err := msg.Decode(&cmd); err != nil {
				c.logger.Warn("malformed command", slog.Any(log.Error, err))
				continue
			}
			if c.HandleCommand(cmd) {
				return
			}
		}
	}
}

// HandleCommand executes cmd and reports whether the worker should stop.
func (c *Core) HandleCommand(cmd ipc.Command) bool {
	switch cmd.Kind() {
	case ipc.CommandTerminate:
		c.logger.Info("terminate requested")
		return true
	case ipc.CommandUnrecognized:
		c.logger.Warn("command not found", slog.String(log.Command, cmd.Type))
		c.send(ipc.CommandNotFoundStatus(cmd))
	}
	return false
}

func (c *Core) send(status ipc.Status) {
	if err := c.ch.SendStatus(status); err != nil {
		c.logger.Warn("sending status", slog.String(log.Type, status.Type), slog.Any(log.Error, err))
	}
}

// rebuild is the throttle's fire callback.
func (c *Core) rebuild(req rebuild.Request) {
	c.state.Bundles.Rebuild(c.ctx, req)
}
