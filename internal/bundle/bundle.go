// Package bundle owns the per-target bundles and sequences their builds.
package bundle

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/yaklabco/unistack/internal/ish"
	"github.com/yaklabco/unistack/internal/rebuild"
)

// Spec is what a Builder is asked to produce.
type Spec struct {
	Target  rebuild.Target
	Entry   string
	Output  string
	Options map[string]string
}

// Builder produces one bundle. Build is called repeatedly on the same value.
type Builder interface {
	Build(ctx context.Context, spec Spec) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, spec Spec) error

func (f BuilderFunc) Build(ctx context.Context, spec Spec) error {
	return f(ctx, spec)
}

// Bundle is one target's artifact: the builder that makes it, where it comes
// from and where it goes, and a mutable bag of build options.
type Bundle struct {
	target  rebuild.Target
	builder Builder
	entry   string
	output  string

	mu      sync.Mutex
	options map[string]string
}

// New creates a bundle. options is copied.
func New(target rebuild.Target, builder Builder, entry, output string, options map[string]string) *Bundle {
	opts := make(map[string]string, len(options))
	maps.Copy(opts, options)
	return &Bundle{
		target:  target,
		builder: builder,
		entry:   entry,
		output:  output,
		options: opts,
	}
}

func (b *Bundle) Target() rebuild.Target { return b.target }
func (b *Bundle) Entry() string          { return b.entry }
func (b *Bundle) Output() string         { return b.output }

// SetOption changes a build option for subsequent builds.
func (b *Bundle) SetOption(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.options[key] = value
}

// Option returns a build option.
func (b *Bundle) Option(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.options[key]
	return v, ok
}

// Spec snapshots the bundle for one build.
func (b *Bundle) Spec() Spec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Spec{
		Target:  b.target,
		Entry:   b.entry,
		Output:  b.output,
		Options: maps.Clone(b.options),
	}
}

// Build runs the builder once.
func (b *Bundle) Build(ctx context.Context) error {
	return b.builder.Build(ctx, b.Spec())
}

// CommandBuilder builds by running an external bundler. The spec reaches the
// command through UNISTACK_* environment variables, which may also be
// referenced as $VARS in its arguments.
type CommandBuilder struct {
	Cmd ish.Cmd
}

// Environment variables set for the bundler command.
const (
	EnvTarget       = "UNISTACK_TARGET"
	EnvEntry        = "UNISTACK_ENTRY"
	EnvOutput       = "UNISTACK_OUTPUT"
	EnvOptionPrefix = "UNISTACK_OPTION_"
)

// Env returns the variables describing spec.
func Env(spec Spec) map[string]string {
	env := map[string]string{
		EnvTarget: spec.Target.String(),
		EnvEntry:  spec.Entry,
		EnvOutput: spec.Output,
	}
	for k, v := range spec.Options {
		env[EnvOptionPrefix+optionKey(k)] = v
	}
	return env
}

func optionKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, k)
}

func (c CommandBuilder) Build(ctx context.Context, spec Spec) error {
	cmd := c.Cmd
	cmd.Env = lo.Assign(c.Cmd.Env, Env(spec))
	_, err := cmd.Exec(ctx)
	return err
}
