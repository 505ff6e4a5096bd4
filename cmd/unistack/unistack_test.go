package unistack

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/unistack/config"
	"github.com/yaklabco/unistack/pkg/ipc"
)

func TestDevParseFlags(t *testing.T) {
	ctx := t.Context()
	called := false
	devFunc := func(_ context.Context, params Params) error {
		called = true
		assert.True(t, params.Debug)
		assert.True(t, params.Verbose)
		assert.Equal(t, "app", params.Dir)
		assert.Equal(t, "dev.yaml", params.ConfigFile)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withDevFunc(devFunc))
	rootCmd.SetArgs([]string{"dev", "-v", "--debug", "-C", "app", "--config", "dev.yaml"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.True(t, called)
}

func TestVerboseEnv(t *testing.T) {
	ctx := t.Context()
	t.Setenv("UNISTACK_VERBOSE", "true")
	devFunc := func(_ context.Context, params Params) error {
		assert.True(t, params.Verbose)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withDevFunc(devFunc))
	rootCmd.SetArgs([]string{"dev"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
}

func TestVerboseFalseEnv(t *testing.T) {
	ctx := t.Context()
	t.Setenv("UNISTACK_VERBOSE", "0")
	devFunc := func(_ context.Context, params Params) error {
		assert.False(t, params.Verbose)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withDevFunc(devFunc))
	rootCmd.SetArgs([]string{"dev"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
}

func TestCoreIsHiddenButRunnable(t *testing.T) {
	ctx := t.Context()
	called := false
	rootCmd := NewRootCmd(ctx, withCoreFunc(func(context.Context, Params) error {
		called = true
		return nil
	}))

	coreCmd, _, err := rootCmd.Find([]string{"core"})
	require.NoError(t, err)
	assert.True(t, coreCmd.Hidden)

	rootCmd.SetArgs([]string{"core"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.True(t, called)
}

func TestRunCore_NotSupervised(t *testing.T) {
	t.Setenv(ipc.EnvFDs, "")

	var stderr bytes.Buffer
	err := RunCore(t.Context(), Params{Stdout: &bytes.Buffer{}, Stderr: &stderr})
	require.ErrorIs(t, err, ipc.ErrNotSupervised)
}

func TestCoreArgs(t *testing.T) {
	cfg := config.DefaultConfig("/env")
	cfg.Debug = true

	args := coreArgs(Params{ConfigFile: "dev.yaml"}, cfg)
	assert.Equal(t, []string{"core", "--dir", "/env", "--config", "dev.yaml", "--debug"}, args)

	cfg.Debug = false
	cfg.Verbose = true
	assert.Equal(t, []string{"core", "--dir", "/env", "--verbose"}, coreArgs(Params{}, cfg))
}

func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestConfigInitAndShow(t *testing.T) {
	isolateUserConfig(t)
	ctx := t.Context()
	dir := t.TempDir()

	var out bytes.Buffer
	rootCmd := NewRootCmd(ctx)
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "init", "-C", dir})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.Contains(t, out.String(), filepath.Join(dir, "unistack.yaml"))
	require.FileExists(t, filepath.Join(dir, "unistack.yaml"))

	out.Reset()
	rootCmd = NewRootCmd(ctx)
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "show", "-C", dir})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))

	shown := out.String()
	assert.Contains(t, shown, "# Loaded from: "+filepath.Join(dir, "unistack.yaml"))
	assert.Contains(t, shown, "debounce: 3s")
	assert.Contains(t, shown, "reloader.addr: 127.0.0.1:3001")
	assert.Contains(t, shown, "bundles.node.run: node dist/server.bundle.js")
}

func TestConfigShowDefaults(t *testing.T) {
	isolateUserConfig(t)
	ctx := t.Context()

	var out bytes.Buffer
	rootCmd := NewRootCmd(ctx)
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "-C", t.TempDir()})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.Contains(t, out.String(), "(using defaults, no config file found)")
}

func TestConfigPath(t *testing.T) {
	isolateUserConfig(t)
	ctx := t.Context()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unistack.yaml"), []byte("debug: true\n"), 0o644))

	var out bytes.Buffer
	rootCmd := NewRootCmd(ctx)
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "path", "-C", dir})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))

	assert.Contains(t, out.String(), "Environment config: "+filepath.Join(dir, "unistack.yaml"))
	assert.Contains(t, out.String(), "Active config file: "+filepath.Join(dir, "unistack.yaml"))
}

func TestDirenvFlag_PassesArgsAfterDash(t *testing.T) {
	ctx := t.Context()
	var got []string
	direnvFunc := func(_ context.Context, params Params, args []string) error {
		assert.True(t, params.Direnv)
		assert.True(t, params.Debug)
		got = args
		return nil
	}
	rootCmd := NewRootCmd(ctx, withDirenvFunc(direnvFunc))
	rootCmd.SetArgs([]string{"--direnv", "-d", "--", "exec", "app", "unistack", "dev"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.Equal(t, []string{"exec", "app", "unistack", "dev"}, got)
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	ctx := t.Context()
	rootCmd := NewRootCmd(ctx, withDirenvFunc(func(context.Context, Params, []string) error {
		t.Fatal("direnv should not run without --direnv")
		return nil
	}))
	rootCmd.SetArgs([]string{"bogus"})
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "bogus"`)
}

func TestRunDirenv_AllowsEnvrc(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	envrc := filepath.Join(dir, ".envrc")
	require.NoError(t, os.WriteFile(envrc, []byte("export UNISTACK_STUB=1\n"), 0o600))

	require.NoError(t, RunDirenv(t.Context(), Params{}, []string{"allow", dir}))

	allowed, err := filepath.Glob(filepath.Join(dataHome, "direnv", "allow", "*"))
	require.NoError(t, err)
	require.Len(t, allowed, 1)
	content, err := os.ReadFile(allowed[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), envrc)
}

func TestDirenvEnv_CarriesGlobalFlags(t *testing.T) {
	t.Setenv("UNISTACK_STUB", "kept")
	envMap := direnvEnv(Params{Debug: true, Verbose: true})
	assert.Equal(t, "kept", envMap["UNISTACK_STUB"])
	assert.Equal(t, "1", envMap["UNISTACK_DEBUG"])
	assert.Equal(t, "1", envMap["UNISTACK_VERBOSE"])
}
