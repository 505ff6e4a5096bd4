package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/metrics"
	"github.com/yaklabco/unistack/internal/rebuild"
	"github.com/yaklabco/unistack/internal/reload"
)

var (
	// ErrClosed is returned by BuildNow after Close.
	ErrClosed = errors.New("bundle: manager closed")

	// ErrBusy is returned by BuildNow when the target is already building.
	ErrBusy = errors.New("bundle: target is building")

	// ErrDisabled is returned by BuildNow for a target without a bundle.
	ErrDisabled = errors.New("bundle: target is disabled")
)

// Emitter broadcasts a live reload event.
type Emitter interface {
	Emit(eventType, data string)
}

// Result describes one finished build.
type Result struct {
	Target   rebuild.Target
	Explicit bool
	Duration time.Duration
	Err      error
}

// ManagerConfig wires a Manager. A target whose bundle is nil is disabled and
// requests for it are ignored.
type ManagerConfig struct {
	Node    *Bundle
	Browser *Bundle

	Emitter Emitter

	// Restart runs after every successful node build, before any reload
	// broadcast.
	Restart func(ctx context.Context) error

	// Report receives every result, successful or not.
	Report func(Result)

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// lane serializes the builds of one target.
type lane struct {
	bundle         *Bundle
	running        bool
	queued         bool
	queuedExplicit bool
}

// Manager executes rebuild requests. Each target builds on its own lane: the
// two targets build concurrently, while a request that arrives during a
// target's build is held and run once that build settles.
type Manager struct {
	cfg     ManagerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	lanes  map[rebuild.Target]*lane
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg:     cfg,
		logger:  log.OrDefault(cfg.Logger),
		metrics: metrics.OrNop(cfg.Metrics),
		lanes:   make(map[rebuild.Target]*lane, 2), //nolint:mnd // node and browser
	}
	if cfg.Node != nil {
		m.lanes[rebuild.Node] = &lane{bundle: cfg.Node}
	}
	if cfg.Browser != nil {
		m.lanes[rebuild.Browser] = &lane{bundle: cfg.Browser}
	}
	return m
}

// Enabled reports whether target has a bundle.
func (m *Manager) Enabled(target rebuild.Target) bool {
	_, ok := m.lanes[target]
	return ok
}

// Rebuild schedules the targets req asks for and returns without waiting.
func (m *Manager) Rebuild(ctx context.Context, req rebuild.Request) {
	m.logger.Debug("rebuild requested", slog.String(log.Request, req.String()))
	for _, target := range lo.Filter(rebuild.Targets(), func(t rebuild.Target, _ int) bool { return req.Has(t) }) {
		m.schedule(ctx, target, target == rebuild.Node && req.ExplicitNode)
	}
}

func (m *Manager) schedule(ctx context.Context, target rebuild.Target, explicit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	l, ok := m.lanes[target]
	if !ok {
		m.logger.Debug("target disabled, skipping", slog.String(log.Target, target.String()))
		return
	}
	if l.running {
		l.queued = true
		l.queuedExplicit = l.queuedExplicit || explicit
		m.logger.Debug("build in flight, queued", slog.String(log.Target, target.String()))
		return
	}

	l.running = true
	m.wg.Add(1)
	go m.drain(context.WithoutCancel(ctx), l, explicit)
}

// drain builds until the lane has nothing queued.
func (m *Manager) drain(ctx context.Context, l *lane, explicit bool) {
	defer m.wg.Done()

	for {
		m.finish(ctx, m.build(ctx, l.bundle, explicit))

		m.mu.Lock()
		if !l.queued || m.closed {
			l.running = false
			l.queued = false
			l.queuedExplicit = false
			m.mu.Unlock()
			return
		}
		explicit = l.queuedExplicit
		l.queued = false
		l.queuedExplicit = false
		m.mu.Unlock()
	}
}

func (m *Manager) build(ctx context.Context, b *Bundle, explicit bool) Result {
	target := b.Target()
	m.logger.Info("building bundle", slog.String(log.Target, target.String()))

	start := time.Now()
	err := b.Build(ctx)
	elapsed := time.Since(start)
	m.metrics.ObserveBuild(target.String(), elapsed, err)

	if err != nil {
		err = fmt.Errorf("building %s bundle: %w", target, err)
	}
	return Result{Target: target, Explicit: explicit, Duration: elapsed, Err: err}
}

func (m *Manager) finish(ctx context.Context, res Result) {
	attrs := []any{slog.String(log.Target, res.Target.String()), slog.Duration(log.Duration, res.Duration)}

	if res.Err == nil && res.Target == rebuild.Node && m.cfg.Restart != nil {
		if err := m.cfg.Restart(ctx); err != nil {
			res.Err = fmt.Errorf("restarting node server: %w", err)
		}
	}

	if res.Err != nil {
		m.logger.Error("build failed", append(attrs, slog.Any(log.Error, res.Err))...)
	} else {
		m.logger.Info("bundle built", attrs...)
		if res.Target == rebuild.Node && res.Explicit && m.cfg.Emitter != nil {
			m.cfg.Emitter.Emit(reload.EventReload, "")
		}
	}

	if m.cfg.Report != nil {
		m.cfg.Report(res)
	}
}

// BuildNow builds target synchronously and returns its error. It is used for
// the initial builds, so it never broadcasts a reload or restarts the node
// server. Requests scheduled while it runs are built afterwards.
func (m *Manager) BuildNow(ctx context.Context, target rebuild.Target) (Result, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Result{}, ErrClosed
	}
	l, ok := m.lanes[target]
	if !ok {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrDisabled, target)
	}
	if l.running {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrBusy, target)
	}
	l.running = true
	m.mu.Unlock()

	res := m.build(ctx, l.bundle, false)

	m.mu.Lock()
	if l.queued && !m.closed {
		explicit := l.queuedExplicit
		l.queued = false
		l.queuedExplicit = false
		m.wg.Add(1)
		go m.drain(context.WithoutCancel(ctx), l, explicit)
	} else {
		l.running = false
		l.queued = false
		l.queuedExplicit = false
	}
	m.mu.Unlock()

	if res.Err != nil {
		m.logger.Error("build failed", slog.String(log.Target, target.String()), slog.Any(log.Error, res.Err))
	} else {
		m.logger.Info("bundle built", slog.String(log.Target, target.String()), slog.Duration(log.Duration, res.Duration))
	}
	return res, res.Err
}

// Building reports whether target has a build in flight.
func (m *Manager) Building(target rebuild.Target) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lanes[target]
	return ok && l.running
}

// Wait blocks until no build is in flight.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops accepting requests, drops queued ones, and waits for in-flight
// builds to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
