// Package reload pushes change and reload events to development browsers over
// Server-Sent Events.
package reload

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/metrics"
)

// Event types.
const (
	// EventConnected greets a new client.
	EventConnected = "connected"
	// EventChange carries the path of a changed asset.
	EventChange = "change"
	// EventReload asks clients for a full page reload.
	EventReload = "reload"
)

// Routes.
const (
	PathEvents  = "/unistack/events"
	PathScript  = "/unistack/reload.js"
	PathMetrics = "/metrics"
	PathHealth  = "/healthz"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:3001"

const (
	retryMillis       = 1000
	readHeaderTimeout = 5 * time.Second
)

//go:embed reload.js
var clientScript []byte

// ErrNotStarted is returned by Addr before Start.
var ErrNotStarted = errors.New("reload: broadcaster not started")

// Config configures a Broadcaster.
type Config struct {
	Addr string

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// BufferSize bounds the events queued per client.
	BufferSize int
	// SendTimeout is how long an event waits on a client whose queue is
	// full before that client is disconnected.
	SendTimeout time.Duration
}

// Broadcaster is the live reload channel. Any number of clients may connect
// and leave at any time; emitting with no clients connected does nothing.
type Broadcaster struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	broker  *broker

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	served   chan struct{}
	closed   bool
}

// New creates a Broadcaster. It does not listen until Start.
func New(cfg Config) *Broadcaster {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	b := &Broadcaster{
		cfg:     cfg,
		logger:  log.OrDefault(cfg.Logger),
		metrics: metrics.OrNop(cfg.Metrics),
	}
	b.broker = newBroker(cfg.BufferSize, cfg.SendTimeout, b.metrics.SetReloadClients)
	return b
}

// Handler returns the HTTP routes of the broadcaster.
func (b *Broadcaster) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathEvents, b.serveEvents)
	mux.HandleFunc("GET "+PathScript, serveScript)
	mux.Handle("GET "+PathMetrics, promhttp.HandlerFor(b.cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET "+PathHealth, healthHandler)
	return mux
}

// Start listens on the configured address and serves in the background.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("reload: broadcaster closed")
	}
	if b.server != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", b.cfg.Addr)
	if err != nil {
		return fmt.Errorf("starting reloader on %s: %w", b.cfg.Addr, err)
	}

	b.listener = ln
	b.served = make(chan struct{})
	b.server = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("reloader stopped", slog.Any(log.Error, err))
		}
	}(b.server, b.served)

	b.logger.Info("reloader listening", slog.String(log.Addr, ln.Addr().String()))
	return nil
}

// Addr returns the address the broadcaster listens on.
func (b *Broadcaster) Addr() (net.Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil, ErrNotStarted
	}
	return b.listener.Addr(), nil
}

// Emit sends an event to every connected client. A client that cannot take
// it within the send timeout is disconnected; its EventSource reconnects.
func (b *Broadcaster) Emit(eventType, data string) {
	delivered, dropped := b.broker.publish(eventType, data)
	b.metrics.ObserveReloadEvent(eventType)
	if dropped > 0 {
		b.logger.Warn("disconnected reload clients that fell behind",
			slog.String(log.Event, eventType),
			slog.Int(log.Clients, dropped),
		)
	}
	b.logger.Debug("reload event",
		slog.String(log.Event, eventType),
		slog.String(log.Data, data),
		slog.Int(log.Clients, delivered),
	)
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	return b.broker.count()
}

// Close disconnects every client and stops listening. It is safe to call more
// than once.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	srv, served := b.server, b.served
	b.mu.Unlock()

	// Ending the subscriptions lets the streaming handlers return, which
	// Shutdown waits for.
	b.broker.close()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping reloader: %w", err)
	}
	<-served
	return nil
}

func (b *Broadcaster) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientID := uuid.NewString()
	events := b.broker.subscribe(r.Context())

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	logger := b.logger.With(slog.String(log.Client, clientID))
	logger.Debug("reload client connected", slog.String(log.Addr, r.RemoteAddr))
	defer logger.Debug("reload client disconnected")

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", retryMillis); err != nil {
		return
	}
	if err := writeEvent(w, Event{ID: clientID, Type: EventConnected}); err != nil {
		return
	}
	flusher.Flush()

	for event := range events {
		if err := writeEvent(w, event); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientScript)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "ok")
}
