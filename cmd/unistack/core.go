package unistack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yaklabco/unistack/internal/core"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/pkg/fault"
	"github.com/yaklabco/unistack/pkg/ipc"
	"github.com/yaklabco/unistack/pkg/supervisor"
)

// RunCore runs the worker on the channel inherited from the supervisor. The
// returned error carries the worker's exit status.
func RunCore(ctx context.Context, params Params) error {
	log.SetupPrettyLogger(params.Stderr, log.PrefixCore, params.Debug)

	ch, err := ipc.OpenInherited()
	if err != nil {
		return fmt.Errorf("core must be started by `unistack dev`: %w", err)
	}
	defer func() { _ = ch.Close() }()

	cfg, err := loadConfig(params)
	if err != nil {
		return startupFailure(ch, err)
	}

	worker, err := core.New(cfg, ch, core.Options{
		Stdout: params.Stdout,
		Stderr: params.Stderr,
		Logger: slog.Default(),
	})
	if err != nil {
		return startupFailure(ch, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fault.Fatal(worker.Run(ctx))
}

// startupFailure completes the handshake so the supervisor reads the error
// status, then exits with the startup code.
func startupFailure(ch *ipc.Channel, err error) error {
	slog.Error("core failed to start", slog.Any(log.Error, err))
	if sendErr := ch.SendReady(ipc.Ready{Protocol: ipc.ProtocolVersion, PID: os.Getpid()}); sendErr == nil {
		_ = ch.SendStatus(ipc.ErrorStatus(err))
	}
	return fault.Fatal(supervisor.ExitStartup)
}
