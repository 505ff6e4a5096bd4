package unistack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cblog "github.com/charmbracelet/log"
	"github.com/yaklabco/unistack/config"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/ui"
	"github.com/yaklabco/unistack/pkg/ipc"
	"github.com/yaklabco/unistack/pkg/supervisor"
)

// RunDev supervises a core worker for the environment until the user
// interrupts it or the worker exits.
func RunDev(ctx context.Context, params Params) error {
	logHandler := log.SetupPrettyLogger(params.Stderr, log.PrefixSupervisor, params.Debug)

	cfg, err := loadConfig(params)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logHandler.SetLevel(cblog.DebugLevel)
	}
	logger := slog.Default()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating unistack binary: %w", err)
	}

	printer := ui.NewStatusPrinter(params.Stdout)
	sup, err := supervisor.New(supervisor.Config{
		Command:      exe,
		Args:         coreArgs(params, cfg),
		Dir:          cfg.EnvironmentDir,
		ReadyTimeout: cfg.ReadyTimeout,
		GracePeriod:  cfg.GracePeriod,
		Stdout:       params.Stdout,
		Stderr:       params.Stderr,
		Callbacks: supervisor.Callbacks{
			OnError:           printer.Print,
			OnSuccess:         printer.Print,
			OnCommandNotFound: printer.Print,
			OnBundleBuilt:     printer.Print,
			OnStatusNotFound:  printer.Print,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := sup.Spawn(ctx)
	if err != nil {
		printer.Print(ipc.ErrorStatus(err))
		return sup.HandleError(err, supervisor.ErrorOptions{})
	}
	logger.Info("core started", slog.Int(log.PID, handle.PID()), slog.String(log.Dir, cfg.EnvironmentDir))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return handle.Terminate(context.WithoutCancel(ctx))
	case <-handle.Exited():
	}

	_ = handle.Destroy(context.WithoutCancel(ctx))
	code, known := handle.ExitCode()
	if status := supervisor.ClassifyExit(code, known); status.Kind() == ipc.StatusError {
		return sup.HandleError(fmt.Errorf("core stopped: %s", ui.Describe(status)), supervisor.ErrorOptions{})
	}
	return nil
}

// coreArgs are the arguments the worker is re-executed with.
func coreArgs(params Params, cfg *config.Config) []string {
	args := []string{"core", "--dir", cfg.EnvironmentDir}
	if params.ConfigFile != "" {
		args = append(args, "--config", params.ConfigFile)
	}
	if cfg.Debug {
		args = append(args, "--debug")
	}
	if cfg.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
