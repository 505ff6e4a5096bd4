package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultVerbose = false
	DefaultDebug   = false

	// DefaultSrcDir is the source tree, relative to the environment root.
	DefaultSrcDir = "src"

	// The three source roots, relative to the source tree.
	DefaultClientDir = "client"
	DefaultServerDir = "server"
	DefaultSharedDir = "shared"

	DefaultDebounce     = 3 * time.Second
	DefaultReadyTimeout = 10 * time.Second
	DefaultGracePeriod  = 5 * time.Second

	DefaultBuildNode    = true
	DefaultBuildBrowser = true

	DefaultReloaderAddr = "127.0.0.1:3001"
)

// Default bundler setup. The bundler sees the bundle through UNISTACK_TARGET,
// UNISTACK_ENTRY, UNISTACK_OUTPUT and UNISTACK_OPTION_* variables.
const (
	DefaultNodeCommand    = "npx esbuild ${UNISTACK_ENTRY} --bundle --platform=node --sourcemap --outfile=${UNISTACK_OUTPUT}"
	DefaultNodeEntry      = "src/server/index.js"
	DefaultNodeOutput     = "dist/server.bundle.js"
	DefaultNodeRun        = "node dist/server.bundle.js"
	DefaultBrowserCommand = "npx esbuild ${UNISTACK_ENTRY} --bundle --sourcemap --outfile=${UNISTACK_OUTPUT}"
	DefaultBrowserEntry   = "src/client/index.js"
	DefaultBrowserOutput  = "dist/client.bundle.js"
)

//nolint:gochecknoglobals // default configuration values
var (
	DefaultExtensions  = []string{"js", "jsx", "ts", "tsx"}
	DefaultExcludeDirs = []string{"test", "tests", "spec", "__tests__"}
	DefaultIgnore      = []string{".git", "node_modules", "jspm_packages", "dist", "*.swp", "*~", ".#*"}
)

// setDefaults configures default values in the viper instance.
func setDefaults(viperInstance *viper.Viper) {
	viperInstance.SetDefault("verbose", DefaultVerbose)
	viperInstance.SetDefault("debug", DefaultDebug)
	viperInstance.SetDefault("src_dir", DefaultSrcDir)
	viperInstance.SetDefault("client_dir", DefaultClientDir)
	viperInstance.SetDefault("server_dir", DefaultServerDir)
	viperInstance.SetDefault("shared_dir", DefaultSharedDir)
	viperInstance.SetDefault("extensions", DefaultExtensions)
	viperInstance.SetDefault("exclude_dirs", DefaultExcludeDirs)
	viperInstance.SetDefault("ignore", DefaultIgnore)
	viperInstance.SetDefault("debounce", DefaultDebounce)
	viperInstance.SetDefault("ready_timeout", DefaultReadyTimeout)
	viperInstance.SetDefault("grace_period", DefaultGracePeriod)
	viperInstance.SetDefault("build.node", DefaultBuildNode)
	viperInstance.SetDefault("build.browser", DefaultBuildBrowser)
	viperInstance.SetDefault("bundles.node.command", []string{DefaultNodeCommand})
	viperInstance.SetDefault("bundles.node.entry", DefaultNodeEntry)
	viperInstance.SetDefault("bundles.node.output", DefaultNodeOutput)
	viperInstance.SetDefault("bundles.node.options", map[string]any{"sourcemap": true, "node": true})
	viperInstance.SetDefault("bundles.node.run", []string{DefaultNodeRun})
	viperInstance.SetDefault("bundles.browser.command", []string{DefaultBrowserCommand})
	viperInstance.SetDefault("bundles.browser.entry", DefaultBrowserEntry)
	viperInstance.SetDefault("bundles.browser.output", DefaultBrowserOutput)
	viperInstance.SetDefault("bundles.browser.options", map[string]any{"sourcemap": true})
	viperInstance.SetDefault("reloader.addr", DefaultReloaderAddr)
}
