// Package classify maps a changed path onto the build targets it affects.
package classify

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/yaklabco/unistack/internal/rebuild"
)

// Match is the source tree a path belongs to.
type Match int

const (
	None Match = iota
	Client
	Server
	Shared
)

func (m Match) String() string {
	switch m {
	case Client:
		return "client"
	case Server:
		return "server"
	case Shared:
		return "shared"
	default:
		return "none"
	}
}

// Request converts a match into the rebuild it calls for.
func (m Match) Request() rebuild.Request {
	switch m {
	case Shared:
		return rebuild.Request{Node: true, Browser: true}
	case Server:
		return rebuild.Request{Node: true, ExplicitNode: true}
	case Client:
		return rebuild.Request{Browser: true}
	default:
		return rebuild.Request{}
	}
}

// DefaultExtensions are the source file extensions classified when none are
// configured.
var DefaultExtensions = []string{"js", "jsx", "ts", "tsx"} //nolint:gochecknoglobals // default configuration value

// DefaultExcludeDirs are directory names whose subtrees never classify.
var DefaultExcludeDirs = []string{"test", "tests", "spec", "__tests__"} //nolint:gochecknoglobals // default configuration value

// ErrNoRoot is returned when a source root is missing.
var ErrNoRoot = errors.New("classify: source root is required")

// Options configures a Classifier. The roots are directories; relative roots
// are resolved against the working directory.
type Options struct {
	Client      string
	Server      string
	Shared      string
	Extensions  []string
	ExcludeDirs []string
}

type root struct {
	dir  string
	glob glob.Glob
}

// Classifier decides which targets a changed path affects.
type Classifier struct {
	client   root
	server   root
	shared   root
	excluded map[string]struct{}
}

// New compiles the patterns for opts.
func New(opts Options) (*Classifier, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	exts = lo.Uniq(lo.FilterMap(exts, func(ext string, _ int) (string, bool) {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		return ext, ext != ""
	}))

	excludes := opts.ExcludeDirs
	if excludes == nil {
		excludes = DefaultExcludeDirs
	}

	c := &Classifier{
		excluded: lo.SliceToMap(excludes, func(dir string) (string, struct{}) {
			return dir, struct{}{}
		}),
	}

	var err error
	if c.client, err = compileRoot("client", opts.Client, exts); err != nil {
		return nil, err
	}
	if c.server, err = compileRoot("server", opts.Server, exts); err != nil {
		return nil, err
	}
	if c.shared, err = compileRoot("shared", opts.Shared, exts); err != nil {
		return nil, err
	}
	return c, nil
}

func compileRoot(name, dir string, exts []string) (root, error) {
	if dir == "" {
		return root{}, fmt.Errorf("%w: %s", ErrNoRoot, name)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return root{}, fmt.Errorf("resolving %s root %q: %w", name, dir, err)
	}
	slashed := strings.TrimSuffix(filepath.ToSlash(abs), "/")

	suffix := "." + exts[0]
	if len(exts) > 1 {
		suffix = ".{" + strings.Join(exts, ",") + "}"
	}
	pattern := glob.QuoteMeta(slashed) + "/**" + suffix

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return root{}, fmt.Errorf("compiling %s pattern %q: %w", name, pattern, err)
	}
	return root{dir: slashed, glob: g}, nil
}

// Match reports which source tree path belongs to. Shared wins over the
// other two trees, and paths inside an excluded directory match nothing.
func (c *Classifier) Match(path string) Match {
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	slashed := filepath.ToSlash(filepath.Clean(abs))

	switch {
	case c.matches(c.shared, slashed):
		return Shared
	case c.matches(c.server, slashed):
		return Server
	case c.matches(c.client, slashed):
		return Client
	default:
		return None
	}
}

func (c *Classifier) matches(r root, path string) bool {
	if !r.glob.Match(path) {
		return false
	}
	rel := strings.TrimPrefix(path, r.dir+"/")
	dirs := strings.Split(rel, "/")
	return !lo.SomeBy(dirs[:len(dirs)-1], func(dir string) bool {
		_, skip := c.excluded[dir]
		return skip
	})
}
