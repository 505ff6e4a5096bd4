package ish

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/unistack/pkg/fault"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestSplit(t *testing.T) {
	cmd, err := Split([]string{"esbuild  src/index.js", "--bundle"})
	require.NoError(t, err)
	assert.Equal(t, "esbuild", cmd.Name)
	assert.Equal(t, []string{"src/index.js", "--bundle"}, cmd.Args)

	_, err = Split([]string{" ", ""})
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestExpand(t *testing.T) {
	t.Setenv("UNISTACK_ISH_FALLBACK", "from-env")
	env := map[string]string{"TARGET": "node"}

	assert.Equal(t, "node/from-env", Expand(env, "$TARGET/${UNISTACK_ISH_FALLBACK}"))
	assert.Empty(t, Expand(nil, "$UNISTACK_ISH_UNSET_VALUE"))
}

func TestExec_Output(t *testing.T) {
	skipOnWindows(t)

	env := map[string]string{"UNISTACK_TARGET": "browser"}

	out, err := Cmd{Name: "printenv", Args: []string{"UNISTACK_TARGET"}, Env: env}.Output(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser", out)

	out, err = Cmd{Name: "echo", Args: []string{"out/${UNISTACK_TARGET}.js"}, Env: env}.Output(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "out/browser.js", out)
}

func TestExec_Dir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	out, err := Cmd{Name: "pwd", Dir: dir}.Output(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, dir[len(dir)-10:])
}

func TestExec_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	var stderr bytes.Buffer

	ran, err := Cmd{
		Name:   "sh",
		Args:   []string{"-c", "echo broken >&2; exit 3"},
		Stderr: &stderr,
	}.Exec(context.Background())
	require.Error(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, fault.ExitStatus(err))
	assert.Equal(t, 3, ExitStatus(err))
	assert.Equal(t, "broken\n", stderr.String())
}

func TestExec_MissingProgram(t *testing.T) {
	ran, err := Cmd{Name: "unistack-no-such-program"}.Exec(context.Background())
	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, ExitStatus(err))
}

func TestCmdRan(t *testing.T) {
	assert.True(t, CmdRan(nil))
	assert.Equal(t, 0, ExitStatus(nil))
}
