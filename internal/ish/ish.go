// Package ish runs external commands the way a shell would: $VAR expansion
// from an overlay environment, process environment as fallback, stdout and
// stderr piped to the caller.
package ish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/samber/lo"
	"github.com/yaklabco/unistack/internal/log"
	envutil "github.com/yaklabco/unistack/pkg/env"
	"github.com/yaklabco/unistack/pkg/fault"
)

// Cmd describes one command invocation.
type Cmd struct {
	Name   string
	Args   []string
	Dir    string
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Verbose echoes the command line on the console logger before running.
	Verbose bool
}

// Split turns a configured command line into a Cmd. The first field is the
// program and the rest are its arguments.
func Split(line []string) (Cmd, error) {
	fields := lo.Compact(lo.FlatMap(line, func(s string, _ int) []string {
		return strings.Fields(s)
	}))
	if len(fields) == 0 {
		return Cmd{}, ErrEmptyCommand
	}
	return Cmd{Name: fields[0], Args: fields[1:]}, nil
}

// ErrEmptyCommand is returned for a command line with no program.
var ErrEmptyCommand = errors.New("ish: empty command")

// Expand substitutes $VAR and ${VAR} in s, looking in env before the process
// environment.
func Expand(env map[string]string, s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := env[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}

// Environ returns the process environment with env appended in key order.
func Environ(env map[string]string) []string {
	return append(os.Environ(), envutil.ToAssignments(env)...)
}

// Command prepares an exec.Cmd without starting it. The program and its
// arguments are expanded against c.Env.
func (c Cmd) Command(ctx context.Context) *exec.Cmd {
	name := Expand(c.Env, c.Name)
	args := lo.Map(c.Args, func(arg string, _ int) string {
		return Expand(c.Env, arg)
	})

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	cmd.Env = Environ(c.Env)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if c.Verbose {
		quoted := lo.Map(args, func(arg string, _ int) string {
			return fmt.Sprintf("%q", arg)
		})
		log.Console.Println("exec:", name, strings.Join(quoted, " "))
	}
	return cmd
}

// Exec runs the command to completion. ran reports whether the program was
// started and exited on its own; a non-zero exit is then a fatal error
// carrying its status.
func (c Cmd) Exec(ctx context.Context) (bool, error) {
	cmd := c.Command(ctx)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	line := strings.TrimSpace(cmd.Path + " " + strings.Join(cmd.Args[1:], " "))
	if CmdRan(err) {
		code := ExitStatus(err)
		return true, fault.Fatalf(code, `running "%s" failed with exit code %d`, line, code)
	}
	return false, fmt.Errorf(`failed to run "%s": %w`, line, err)
}

// Output runs the command and returns its trimmed stdout.
func (c Cmd) Output(ctx context.Context) (string, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	_, err := c.Exec(ctx)
	return strings.TrimSuffix(buf.String(), "\n"), err
}

// CmdRan examines the error to determine if it was generated as a result of a
// command running via os/exec.Command.
func CmdRan(err error) bool {
	if err == nil {
		return true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.Exited()
	}
	return false
}

// ExitStatus returns the exit status of the error if it is an exec.ExitError
// or if it implements ExitStatus() int.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit fault.ExitStatuser
	if errors.As(err, &exit) {
		return exit.ExitStatus()
	}
	var e *exec.ExitError
	if errors.As(err, &e) {
		if ex, ok := e.Sys().(fault.ExitStatuser); ok {
			return ex.ExitStatus()
		}
	}
	return 1
}
