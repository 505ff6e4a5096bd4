package bundle

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/unistack/internal/ish"
	"github.com/yaklabco/unistack/internal/rebuild"
	"github.com/yaklabco/unistack/pkg/fault"
)

func TestBundle_OptionsAreCopied(t *testing.T) {
	opts := map[string]string{"sourcemap": "true"}
	b := New(rebuild.Node, nil, "src/server/index.js", "dist/server.js", opts)
	opts["sourcemap"] = "false"

	v, ok := b.Option("sourcemap")
	require.True(t, ok)
	assert.Equal(t, "true", v)
	assert.Equal(t, rebuild.Node, b.Target())
	assert.Equal(t, "src/server/index.js", b.Entry())
	assert.Equal(t, "dist/server.js", b.Output())
}

func TestBundle_SpecIsSnapshot(t *testing.T) {
	b := New(rebuild.Browser, nil, "in.js", "out.js", nil)
	before := b.Spec()

	b.SetOption("minify", "true")
	after := b.Spec()

	assert.Empty(t, before.Options)
	assert.Equal(t, map[string]string{"minify": "true"}, after.Options)
	assert.Equal(t, rebuild.Browser, after.Target)
}

func TestBundle_BuildPassesSpec(t *testing.T) {
	var got Spec
	b := New(rebuild.Node, BuilderFunc(func(_ context.Context, spec Spec) error {
		got = spec
		return nil
	}), "in.js", "out.js", map[string]string{"node": "true"})

	require.NoError(t, b.Build(context.Background()))
	assert.Equal(t, Spec{Target: rebuild.Node, Entry: "in.js", Output: "out.js", Options: map[string]string{"node": "true"}}, got)
}

func TestEnv(t *testing.T) {
	env := Env(Spec{
		Target:  rebuild.Browser,
		Entry:   "src/client/index.js",
		Output:  "dist/client.js",
		Options: map[string]string{"sourcemap": "true", "jsx-factory": "h"},
	})

	assert.Equal(t, map[string]string{
		EnvTarget:                       "browser",
		EnvEntry:                        "src/client/index.js",
		EnvOutput:                       "dist/client.js",
		EnvOptionPrefix + "SOURCEMAP":   "true",
		EnvOptionPrefix + "JSX_FACTORY": "h",
	}, env)
}

func TestCommandBuilder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	output := filepath.Join(dir, "out.js")

	builder := CommandBuilder{Cmd: ish.Cmd{
		Name: "sh",
		Args: []string{"-c", `printf '%s:%s' "$UNISTACK_TARGET" "$UNISTACK_OPTION_MINIFY" > "$UNISTACK_OUTPUT"`},
		Env:  map[string]string{"UNRELATED": "kept"},
	}}
	err := builder.Build(context.Background(), Spec{
		Target:  rebuild.Node,
		Entry:   "in.js",
		Output:  output,
		Options: map[string]string{"minify": "yes"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "node:yes", string(data))
	assert.Equal(t, map[string]string{"UNRELATED": "kept"}, builder.Cmd.Env, "builder env must not be mutated")
}

func TestCommandBuilder_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	builder := CommandBuilder{Cmd: ish.Cmd{Name: "sh", Args: []string{"-c", "exit 2"}}}

	err := builder.Build(context.Background(), Spec{Target: rebuild.Browser})
	require.Error(t, err)
	assert.Equal(t, 2, fault.ExitStatus(err))
}
