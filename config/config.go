package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/yaklabco/unistack/pkg/env"
	"github.com/yaklabco/unistack/pkg/fault"
)

// CodeInvalidConfigPath is the startup error for an explicit config file that
// cannot be read.
const CodeInvalidConfigPath = "INVALID_CONFIG_PATH"

// Config holds all unistack configuration values.
type Config struct {
	// EnvironmentDir is the absolute environment root. It is resolved by Load,
	// not read from a file.
	EnvironmentDir string `mapstructure:"-"`

	// Verbose echoes bundler commands before they run.
	Verbose bool `mapstructure:"verbose"`

	// Debug enables debug messages.
	Debug bool `mapstructure:"debug"`

	// SrcDir is the source tree, relative to the environment root.
	SrcDir string `mapstructure:"src_dir"`

	// ClientDir, ServerDir and SharedDir are the source roots, relative to
	// SrcDir.
	ClientDir string `mapstructure:"client_dir"`
	ServerDir string `mapstructure:"server_dir"`
	SharedDir string `mapstructure:"shared_dir"`

	// Extensions are the source file extensions that trigger rebuilds.
	Extensions []string `mapstructure:"extensions"`

	// ExcludeDirs are directory names whose subtrees never trigger rebuilds.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`

	// Ignore are glob patterns the watcher skips entirely.
	Ignore []string `mapstructure:"ignore"`

	// Debounce is the quiet period before a rebuild starts.
	Debounce time.Duration `mapstructure:"debounce"`

	// ReadyTimeout bounds the wait for the core handshake.
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`

	// GracePeriod is how long a child process may take to exit before it is
	// killed.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	Build    BuildConfig    `mapstructure:"build"`
	Bundles  BundlesConfig  `mapstructure:"bundles"`
	Reloader ReloaderConfig `mapstructure:"reloader"`

	// configFile is the path to the config file that was loaded (if any).
	configFile string
}

// BuildConfig toggles the two targets.
type BuildConfig struct {
	Node    bool `mapstructure:"node"`
	Browser bool `mapstructure:"browser"`
}

// Enabled reports whether the target with the given name is built.
func (b BuildConfig) Enabled(target string) bool {
	switch target {
	case "node":
		return b.Node
	case "browser":
		return b.Browser
	default:
		return false
	}
}

// BundlesConfig holds one bundle per target.
type BundlesConfig struct {
	Node    BundleConfig `mapstructure:"node"`
	Browser BundleConfig `mapstructure:"browser"`
}

// BundleConfig describes how one bundle is produced.
type BundleConfig struct {
	// Command is the bundler command line. A single string is split on
	// whitespace.
	Command []string `mapstructure:"command"`

	// Entry and Output are relative to the environment root.
	Entry  string `mapstructure:"entry"`
	Output string `mapstructure:"output"`

	// Options is the initial build options bag.
	Options map[string]any `mapstructure:"options"`

	// Run starts the built bundle as a server. Only used for node.
	Run []string `mapstructure:"run"`
}

// ReloaderConfig configures the live reload server.
type ReloaderConfig struct {
	Addr string `mapstructure:"addr"`
}

// ConfigFile returns the path to the configuration file that was loaded,
// or an empty string if no file was loaded.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Path resolves p against the environment root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.EnvironmentDir, p)
}

// SrcPath returns the absolute source tree.
func (c *Config) SrcPath() string {
	return c.Path(c.SrcDir)
}

func (c *Config) srcRoot(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.SrcPath(), dir)
}

// ClientPath returns the absolute client source root.
func (c *Config) ClientPath() string { return c.srcRoot(c.ClientDir) }

// ServerPath returns the absolute server source root.
func (c *Config) ServerPath() string { return c.srcRoot(c.ServerDir) }

// SharedPath returns the absolute shared source root.
func (c *Config) SharedPath() string { return c.srcRoot(c.SharedDir) }

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// EnvironmentDir is the environment root. If empty, UNISTACK_ENVIRONMENT_DIR
	// and then the current working directory are used.
	EnvironmentDir string

	// ConfigFile replaces the environment config file. Relative paths are
	// resolved against the environment root.
	ConfigFile string

	// Stderr is where warnings are written.
	// If nil, os.Stderr is used.
	Stderr io.Writer

	// SkipProjectConfig skips loading the environment config file.
	SkipProjectConfig bool

	// SkipUserConfig skips loading user-level configuration.
	SkipUserConfig bool

	// SkipEnv skips reading environment variables.
	SkipEnv bool
}

// Load reads configuration from all sources and returns a Config struct.
// Configuration is loaded in the following order (later sources override earlier):
//  1. Defaults
//  2. User config file (~/.config/unistack/config.yaml)
//  3. Environment config file (<environment>/unistack.yaml) or the explicit
//     config file
//  4. Environment variables (UNISTACK_*)
//
// If opts is nil, default options are used.
func Load(opts *LoadOptions) (*Config, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	envDir, err := resolveEnvironmentDir(opts)
	if err != nil {
		return nil, err
	}

	viperInstance := viper.New()

	setDefaults(viperInstance)
	viperInstance.SetConfigType("yaml")

	var configFileUsed string

	if !opts.SkipUserConfig {
		viperInstance.SetConfigName(ConfigFileName)
		viperInstance.AddConfigPath(UserConfigDir())

		if err := viperInstance.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("failed to read user config file: %w", err)
			}
		} else {
			configFileUsed = viperInstance.ConfigFileUsed()
		}
	}

	switch {
	case opts.ConfigFile != "":
		configPath := opts.ConfigFile
		if !filepath.IsAbs(configPath) {
			configPath = filepath.Join(envDir, configPath)
		}
		viperInstance.SetConfigFile(configPath)
		if err := viperInstance.MergeInConfig(); err != nil {
			return nil, fault.Wrap(CodeInvalidConfigPath, map[string]string{"filename": configPath}, err)
		}
		configFileUsed = configPath

	case !opts.SkipProjectConfig:
		projectConfigPath := ProjectConfigPath(envDir)
		if _, err := os.Stat(projectConfigPath); err == nil {
			viperInstance.SetConfigFile(projectConfigPath)
			if err := viperInstance.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read project config file: %w", err)
			}
			configFileUsed = projectConfigPath
		}
	}

	var cfg Config
	if err := viperInstance.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !opts.SkipEnv {
		if err := applyEnvironmentOverrides(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.EnvironmentDir = envDir
	cfg.configFile = configFileUsed

	result := cfg.Validate()
	if result.HasWarnings() {
		result.WriteWarnings(opts.Stderr)
	}
	if result.HasErrors() {
		return nil, errors.New(result.ErrorMessage())
	}

	return &cfg, nil
}

func resolveEnvironmentDir(opts *LoadOptions) (string, error) {
	dir := opts.EnvironmentDir
	if dir == "" && !opts.SkipEnv {
		dir = os.Getenv("UNISTACK_ENVIRONMENT_DIR")
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(ExpandHome(dir))
	if err != nil {
		return "", fmt.Errorf("resolving environment directory %q: %w", dir, err)
	}
	return abs, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// Environment variables take precedence over config files.
func applyEnvironmentOverrides(cfg *Config) error {
	parseDuration := func(name, v string, dst *time.Duration) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		*dst = d
		return nil
	}

	for name, dst := range map[string]*bool{
		"UNISTACK_VERBOSE":       &cfg.Verbose,
		"UNISTACK_DEBUG":         &cfg.Debug,
		"UNISTACK_BUILD_NODE":    &cfg.Build.Node,
		"UNISTACK_BUILD_BROWSER": &cfg.Build.Browser,
	} {
		value, ok, err := env.LookupBool(name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	if v := os.Getenv("UNISTACK_RELOADER_ADDR"); v != "" {
		cfg.Reloader.Addr = v
	}
	if v := os.Getenv("UNISTACK_DEBOUNCE"); v != "" {
		if err := parseDuration("UNISTACK_DEBOUNCE", v, &cfg.Debounce); err != nil {
			return err
		}
	}
	if v := os.Getenv("UNISTACK_READY_TIMEOUT"); v != "" {
		if err := parseDuration("UNISTACK_READY_TIMEOUT", v, &cfg.ReadyTimeout); err != nil {
			return err
		}
	}
	if v := os.Getenv("UNISTACK_GRACE_PERIOD"); v != "" {
		if err := parseDuration("UNISTACK_GRACE_PERIOD", v, &cfg.GracePeriod); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConfig returns a Config with all default values for the environment
// rooted at dir.
func DefaultConfig(dir string) *Config {
	viperInstance := viper.New()
	setDefaults(viperInstance)

	var cfg Config
	// Defaults are static and always decode.
	_ = viperInstance.Unmarshal(&cfg)
	cfg.EnvironmentDir = dir
	return &cfg
}

// WriteDefaultConfig writes a default environment config file into dir.
func WriteDefaultConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create environment directory: %w", err)
	}

	configPath := ProjectConfigPath(dir)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// defaultConfigYAML returns the default configuration as YAML.
func defaultConfigYAML() string {
	return `# unistack environment configuration

# Source tree and the three roots inside it.
src_dir: src
client_dir: client
server_dir: server
shared_dir: shared

# File extensions that trigger a rebuild.
extensions: [js, jsx, ts, tsx]

# Directories under the source roots that never trigger a rebuild.
exclude_dirs: [test, tests, spec, __tests__]

# Paths the watcher skips entirely.
ignore: [.git, node_modules, jspm_packages, dist, "*.swp", "*~", ".#*"]

# Quiet period before a rebuild starts.
debounce: 3s

# How long the core may take to start, and to stop before it is killed.
ready_timeout: 10s
grace_period: 5s

build:
  node: true
  browser: true

bundles:
  node:
    command: npx esbuild ${UNISTACK_ENTRY} --bundle --platform=node --sourcemap --outfile=${UNISTACK_OUTPUT}
    entry: src/server/index.js
    output: dist/server.bundle.js
    options:
      sourcemap: true
      node: true
    run: node dist/server.bundle.js
  browser:
    command: npx esbuild ${UNISTACK_ENTRY} --bundle --sourcemap --outfile=${UNISTACK_OUTPUT}
    entry: src/client/index.js
    output: dist/client.bundle.js
    options:
      sourcemap: true

reloader:
  addr: 127.0.0.1:3001
`
}
