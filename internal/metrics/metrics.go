// Package metrics holds the Prometheus instruments of the core process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics is the set of instruments one core process reports.
type Metrics struct {
	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	watchEvents   *prometheus.CounterVec
	reloadClients prometheus.Gauge
	reloadEvents  *prometheus.CounterVec
}

// New creates the instruments and registers them on reg. A nil reg leaves
// them unregistered, which is what tests that do not gather want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unistack_builds_total",
				Help: "Bundle builds by target and result",
			},
			[]string{"target", "result"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unistack_build_duration_seconds",
				Help:    "Bundle build duration",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"target"},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unistack_watch_events_total",
				Help: "File system events by classification",
			},
			[]string{"classification"},
		),
		reloadClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "unistack_reload_clients",
				Help: "Connected live reload clients",
			},
		),
		reloadEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unistack_reload_events_total",
				Help: "Live reload events broadcast by type",
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.builds, m.buildDuration, m.watchEvents, m.reloadClients, m.reloadEvents)
	}
	return m
}

// Nop returns unregistered instruments.
func Nop() *Metrics {
	return New(nil)
}

// OrNop returns m, or unregistered instruments when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m == nil {
		return Nop()
	}
	return m
}

// ObserveBuild records one finished build.
func (m *Metrics) ObserveBuild(target string, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.builds.WithLabelValues(target, result).Inc()
	m.buildDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}

// ObserveWatchEvent counts a classified file system event.
func (m *Metrics) ObserveWatchEvent(classification string) {
	m.watchEvents.WithLabelValues(classification).Inc()
}

// SetReloadClients records the number of connected reload clients.
func (m *Metrics) SetReloadClients(n int) {
	m.reloadClients.Set(float64(n))
}

// ObserveReloadEvent counts a broadcast event.
func (m *Metrics) ObserveReloadEvent(eventType string) {
	m.reloadEvents.WithLabelValues(eventType).Inc()
}
