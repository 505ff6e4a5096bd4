package unistack

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yaklabco/unistack/config"
)

func newConfigCmd(params *Params) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage unistack configuration",
		Example: `	# Show effective configuration
	unistack config

	# Create unistack.yaml in the environment root
	unistack config init

	# Show config file locations
	unistack config path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout(), *params)
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Display effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runConfigShow(cmd.OutOrStdout(), *params)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a default " + config.ProjectConfigFileName + ".yaml in the environment root",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runConfigInit(cmd.OutOrStdout(), *params)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file paths",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runConfigPath(cmd.OutOrStdout(), *params)
			},
		},
	)
	return configCmd
}

// runConfigInit creates a default environment configuration file.
func runConfigInit(stdout io.Writer, params Params) error {
	dir, err := environmentRoot(params)
	if err != nil {
		return err
	}
	path, err := config.WriteDefaultConfig(dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Created config file: %s\n", path)
	return nil
}

// runConfigShow displays the effective configuration.
func runConfigShow(stdout io.Writer, params Params) error {
	cfg, err := loadConfig(params)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, _ = fmt.Fprintln(stdout, "# Effective unistack configuration")
	if cfg.ConfigFile() != "" {
		_, _ = fmt.Fprintf(stdout, "# Loaded from: %s\n", cfg.ConfigFile())
	} else {
		_, _ = fmt.Fprintln(stdout, "# (using defaults, no config file found)")
	}
	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintf(stdout, "environment_dir: %s\n", cfg.EnvironmentDir)
	_, _ = fmt.Fprintf(stdout, "verbose: %v\n", cfg.Verbose)
	_, _ = fmt.Fprintf(stdout, "debug: %v\n", cfg.Debug)
	_, _ = fmt.Fprintf(stdout, "src_dir: %s\n", cfg.SrcDir)
	_, _ = fmt.Fprintf(stdout, "client_dir: %s\n", cfg.ClientDir)
	_, _ = fmt.Fprintf(stdout, "server_dir: %s\n", cfg.ServerDir)
	_, _ = fmt.Fprintf(stdout, "shared_dir: %s\n", cfg.SharedDir)
	_, _ = fmt.Fprintf(stdout, "extensions: [%s]\n", strings.Join(cfg.Extensions, ", "))
	_, _ = fmt.Fprintf(stdout, "exclude_dirs: [%s]\n", strings.Join(cfg.ExcludeDirs, ", "))
	_, _ = fmt.Fprintf(stdout, "debounce: %s\n", cfg.Debounce)
	_, _ = fmt.Fprintf(stdout, "ready_timeout: %s\n", cfg.ReadyTimeout)
	_, _ = fmt.Fprintf(stdout, "grace_period: %s\n", cfg.GracePeriod)
	_, _ = fmt.Fprintf(stdout, "build.node: %v\n", cfg.Build.Node)
	_, _ = fmt.Fprintf(stdout, "build.browser: %v\n", cfg.Build.Browser)
	for _, b := range []struct {
		name string
		cfg  config.BundleConfig
	}{{"node", cfg.Bundles.Node}, {"browser", cfg.Bundles.Browser}} {
		_, _ = fmt.Fprintf(stdout, "bundles.%s.command: %s\n", b.name, strings.Join(b.cfg.Command, " "))
		_, _ = fmt.Fprintf(stdout, "bundles.%s.entry: %s\n", b.name, b.cfg.Entry)
		_, _ = fmt.Fprintf(stdout, "bundles.%s.output: %s\n", b.name, b.cfg.Output)
		if len(b.cfg.Run) > 0 {
			_, _ = fmt.Fprintf(stdout, "bundles.%s.run: %s\n", b.name, strings.Join(b.cfg.Run, " "))
		}
	}
	_, _ = fmt.Fprintf(stdout, "reloader.addr: %s\n", cfg.Reloader.Addr)

	return nil
}

// runConfigPath displays the configuration file paths.
func runConfigPath(stdout io.Writer, params Params) error {
	envDir, err := environmentRoot(params)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(stdout, "Configuration Paths:")
	_, _ = fmt.Fprintf(stdout, "  User config:        %s\n", config.UserConfigPath())
	_, _ = fmt.Fprintf(stdout, "  Config dir:         %s\n", config.UserConfigDir())
	_, _ = fmt.Fprintf(stdout, "  Environment config: %s\n", config.ProjectConfigPath(envDir))

	if cfg, err := loadConfig(params); err == nil && cfg.ConfigFile() != "" {
		_, _ = fmt.Fprintf(stdout, "\nActive config file: %s\n", cfg.ConfigFile())
	} else {
		_, _ = fmt.Fprintln(stdout, "\nNo config file currently loaded (using defaults)")
	}
	return nil
}

// environmentRoot is the --dir flag resolved to an absolute path.
func environmentRoot(params Params) (string, error) {
	dir := params.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving environment directory %q: %w", dir, err)
	}
	return abs, nil
}
