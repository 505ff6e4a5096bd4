// Package watch reports file changes under a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/yaklabco/unistack/internal/log"
)

const eventBufferSize = 64

// DefaultIgnore are skipped when no ignore patterns are configured.
var DefaultIgnore = []string{".git", "node_modules", "jspm_packages", "dist", "*.swp", "*~", ".#*"} //nolint:gochecknoglobals // default configuration value

var (
	// ErrStarted is returned by Start on a watcher that was already started.
	ErrStarted = errors.New("watch: already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("watch: closed")
)

// Event is one changed path.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Options configures a Watcher.
type Options struct {
	Root string

	// Ignore holds glob patterns matched against both the slash-separated
	// path relative to Root and the base name. Matching directories are not
	// descended into.
	Ignore []string

	Logger *slog.Logger
}

// Watcher watches Root recursively. Directories created after Start are
// picked up as they appear.
type Watcher struct {
	root   string
	ignore []glob.Glob
	logger *slog.Logger

	fsw    *fsnotify.Watcher
	events chan Event
	ready  chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	started   bool
	running   bool
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// New compiles the ignore patterns and creates the underlying watcher.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root %q: %w", opts.Root, err)
	}

	patterns := opts.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	ignore := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
		}
		ignore = append(ignore, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:   root,
		ignore: ignore,
		logger: log.OrDefault(opts.Logger),
		fsw:    fsw,
		events: make(chan Event, eventBufferSize),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// Events delivers changed paths. It is closed after Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Ready is closed once the initial tree has been registered.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Start registers the tree and begins delivering events. It returns once the
// watcher is ready.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return ErrClosed
	default:
	}
	if w.started {
		w.mu.Unlock()
		return ErrStarted
	}
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrClosed
	}
	w.running = true
	w.wg.Add(1)
	go w.loop(ctx)
	w.mu.Unlock()

	close(w.ready)
	w.logger.Debug("watcher ready", slog.String(log.Dir, w.root))
	return nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		running := w.running
		w.running = true
		w.mu.Unlock()
		if !running {
			close(w.events)
		}
	})
	return w.closeErr
}

// Ignored reports whether path is excluded by the ignore patterns.
func (w *Watcher) Ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	return lo.SomeBy(w.ignore, func(g glob.Glob) bool {
		return g.Match(rel) || g.Match(base)
	})
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.Ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to add %q to watcher: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.handle(ctx, event) {
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.Any(log.Error, err))
		}
	}
}

// handle reports false when the watcher is shutting down.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) bool {
	path := event.Name
	if !filepath.IsAbs(path) {
		if a, err := filepath.Abs(path); err == nil {
			path = a
		}
	}
	if w.Ignored(path) {
		return true
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watching new directory", slog.String(log.Path, path), slog.Any(log.Error, err))
			}
			return true
		}
	}

	w.logger.Debug("file changed",
		slog.String(log.Path, path),
		slog.String(log.Event, strings.ToLower(event.Op.String())),
	)
	select {
	case w.events <- Event{Path: path, Op: event.Op}:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}
