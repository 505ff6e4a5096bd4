// Package unistack holds the unistack command tree.
package unistack

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/yaklabco/unistack/cmd/unistack/version"
	"github.com/yaklabco/unistack/config"
	"github.com/yaklabco/unistack/pkg/env"
)

const (
	shortDescription = "unistack runs a universal JavaScript dev environment: " +
		"it rebuilds the node and browser bundles on change and live reloads the browser."
)

// Params are the global flags shared by every subcommand.
type Params struct {
	Debug      bool
	Verbose    bool
	Dir        string
	ConfigFile string
	Direnv     bool

	Stdout io.Writer
	Stderr io.Writer
}

type rootCmdOptions struct {
	devFunc  func(ctx context.Context, params Params) error
	coreFunc   func(ctx context.Context, params Params) error
	direnvFunc func(ctx context.Context, params Params, args []string) error
}

type Option func(*rootCmdOptions)

// This is intentionally designed to be unusable from outside this package,
// as it exists purely for testing purposes.
func withDevFunc(fn func(ctx context.Context, params Params) error) Option {
	return func(opts *rootCmdOptions) {
		opts.devFunc = fn
	}
}

func withCoreFunc(fn func(ctx context.Context, params Params) error) Option {
	return func(opts *rootCmdOptions) {
		opts.coreFunc = fn
	}
}

func withDirenvFunc(fn func(ctx context.Context, params Params, args []string) error) Option {
	return func(opts *rootCmdOptions) {
		opts.direnvFunc = fn
	}
}

func NewRootCmd(ctx context.Context, opts ...Option) *cobra.Command {
	rootCmdOpts := &rootCmdOptions{
		devFunc:    RunDev,
		coreFunc:   RunCore,
		direnvFunc: RunDirenv,
	}
	for _, opt := range opts {
		opt(rootCmdOpts)
	}

	params := Params{Stdout: os.Stdout, Stderr: os.Stderr}
	rootCmd := &cobra.Command{
		Use:   "unistack",
		Short: shortDescription,
		Example: `	# Start the dev environment in the current directory
	unistack dev

	# Start it for another environment with a specific config file
	unistack dev -C ./my-app --config dev.yaml

	# Load the environment's .envrc, then start it
	unistack --direnv -- allow ./my-app
	unistack --direnv -- exec ./my-app unistack dev -C ./my-app

	# Manage configuration
	unistack config show
	unistack config init`,
		Version:       version.OverallVersionStringColorized(ctx),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Direnv {
				return rootCmdOpts.direnvFunc(cmd.Context(), params, args)
			}
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
	}

	// Flags.
	rootCmd.PersistentFlags().BoolVarP(&params.Debug, "debug", "d", env.FailsafeBool("UNISTACK_DEBUG", false), "turn on debug messages")
	rootCmd.PersistentFlags().BoolVarP(&params.Verbose, "verbose", "v", env.FailsafeBool("UNISTACK_VERBOSE", false), "echo bundler commands before they run")
	rootCmd.PersistentFlags().StringVarP(&params.Dir, "dir", "C", "", "environment root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&params.ConfigFile, "config", "c", "",
		"config file, relative to the environment root (default: "+config.ProjectConfigFileName+".yaml)")

	// Pseudo-flag: hands the arguments after -- to direnv.
	rootCmd.PersistentFlags().BoolVar(&params.Direnv, "direnv", false, "delegate to direnv for managing environment variables")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "dev",
			Short: "Start the dev environment and supervise it until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rootCmdOpts.devFunc(cmd.Context(), params)
			},
		},
		&cobra.Command{
			Use:    "core",
			Short:  "Run the dev environment worker (started by dev)",
			Hidden: true,
			Args:   cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rootCmdOpts.coreFunc(cmd.Context(), params)
			},
		},
		newConfigCmd(&params),
	)

	return rootCmd
}

// ExecuteWithFang runs the root Cobra command with Fang-specific options.
// Errors without a message only carry an exit status and are not printed.
func ExecuteWithFang(ctx context.Context, rootCmd *cobra.Command) error {
	//nolint:wrapcheck // top-level error from cobra, wrapping not needed
	return fang.Execute(
		ctx, rootCmd,
		fang.WithVersion(rootCmd.Version),
		fang.WithoutManpage(),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			if err.Error() == "" {
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
}

func loadConfig(params Params) (*config.Config, error) {
	cfg, err := config.Load(&config.LoadOptions{
		EnvironmentDir: params.Dir,
		ConfigFile:     params.ConfigFile,
		Stderr:         params.Stderr,
	})
	if err != nil {
		return nil, err
	}
	cfg.Debug = cfg.Debug || params.Debug
	cfg.Verbose = cfg.Verbose || params.Verbose
	return cfg, nil
}
