package core

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/yaklabco/unistack/config"
	"github.com/yaklabco/unistack/internal/bundle"
	"github.com/yaklabco/unistack/internal/classify"
	"github.com/yaklabco/unistack/internal/debounce"
	"github.com/yaklabco/unistack/internal/ish"
	"github.com/yaklabco/unistack/internal/metrics"
	"github.com/yaklabco/unistack/internal/rebuild"
	"github.com/yaklabco/unistack/internal/reload"
	"github.com/yaklabco/unistack/internal/runner"
	"github.com/yaklabco/unistack/internal/watch"
)

// State is everything the worker owns. It is built once by New and shared by
// reference with the handlers; nothing in it is global.
type State struct {
	Config     *config.Config
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Classifier *classify.Classifier
	Throttle   *debounce.Throttle
	Bundles    *bundle.Manager
	Reloader   *reload.Broadcaster
	Watcher    *watch.Watcher

	// Server is nil unless a node run command is configured.
	Server *runner.Runner
}

type stateDeps struct {
	node, browser  bundle.Builder
	registry       *prometheus.Registry
	stdout, stderr io.Writer
	logger         *slog.Logger
	fire           debounce.FireFunc
	report         func(bundle.Result)
}

func newState(cfg *config.Config, deps stateDeps) (*State, error) {
	state := &State{Config: cfg, Registry: deps.registry}
	state.Metrics = metrics.New(deps.registry)

	var err error
	state.Classifier, err = classify.New(classify.Options{
		Client:      cfg.ClientPath(),
		Server:      cfg.ServerPath(),
		Shared:      cfg.SharedPath(),
		Extensions:  cfg.Extensions,
		ExcludeDirs: cfg.ExcludeDirs,
	})
	if err != nil {
		return nil, err
	}

	state.Reloader = reload.New(reload.Config{
		Addr:     cfg.Reloader.Addr,
		Gatherer: deps.registry,
		Metrics:  state.Metrics,
		Logger:   deps.logger,
	})

	if cfg.Build.Node && len(cfg.Bundles.Node.Run) > 0 {
		cmd, err := ish.Split(cfg.Bundles.Node.Run)
		if err != nil {
			return nil, fmt.Errorf("node run command: %w", err)
		}
		cmd.Dir = cfg.EnvironmentDir
		cmd.Stdout, cmd.Stderr = deps.stdout, deps.stderr
		state.Server = runner.New(runner.Config{
			Cmd:         cmd,
			GracePeriod: cfg.GracePeriod,
			Logger:      deps.logger,
		})
	}

	managerCfg := bundle.ManagerConfig{
		Emitter: state.Reloader,
		Report:  deps.report,
		Metrics: state.Metrics,
		Logger:  deps.logger,
	}
	if state.Server != nil {
		managerCfg.Restart = state.Server.Restart
	}
	if cfg.Build.Node {
		managerCfg.Node, err = newBundle(cfg, rebuild.Node, cfg.Bundles.Node, deps.node, deps)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Build.Browser {
		managerCfg.Browser, err = newBundle(cfg, rebuild.Browser, cfg.Bundles.Browser, deps.browser, deps)
		if err != nil {
			return nil, err
		}
	}
	state.Bundles = bundle.NewManager(managerCfg)
	state.Throttle = debounce.New(cfg.Debounce, deps.fire)

	// Created last; it owns an fsnotify instance.
	state.Watcher, err = watch.New(watch.Options{
		Root:   cfg.SrcPath(),
		Ignore: cfg.Ignore,
		Logger: deps.logger,
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// newBundle uses builder when given and the configured command otherwise.
func newBundle(cfg *config.Config, target rebuild.Target, bc config.BundleConfig, builder bundle.Builder, deps stateDeps) (*bundle.Bundle, error) {
	if builder == nil {
		cmd, err := ish.Split(bc.Command)
		if err != nil {
			return nil, fmt.Errorf("%s bundle command: %w", target, err)
		}
		cmd.Dir = cfg.EnvironmentDir
		cmd.Verbose = cfg.Verbose
		cmd.Stdout, cmd.Stderr = deps.stdout, deps.stderr
		builder = bundle.CommandBuilder{Cmd: cmd}
	}
	options := lo.MapValues(bc.Options, func(v any, _ string) string {
		return fmt.Sprint(v)
	})
	return bundle.New(target, builder, cfg.Path(bc.Entry), cfg.Path(bc.Output), options), nil
}
