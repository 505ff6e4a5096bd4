package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestObserveBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBuild("node", 200*time.Millisecond, nil)
	m.ObserveBuild("node", time.Second, errors.New("syntax error"))
	m.ObserveBuild("browser", time.Second, nil)

	families := gather(t, reg)
	builds := families["unistack_builds_total"]
	require.NotNil(t, builds)

	counts := map[string]float64{}
	for _, metric := range builds.GetMetric() {
		key := labelValue(metric, "target") + "/" + labelValue(metric, "result")
		counts[key] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"node/success":    1,
		"node/failure":    1,
		"browser/success": 1,
	}, counts)

	durations := families["unistack_build_duration_seconds"]
	require.NotNil(t, durations)
	assert.Len(t, durations.GetMetric(), 2)
}

func TestReloadInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetReloadClients(3)
	m.ObserveReloadEvent("reload")
	m.ObserveReloadEvent("reload")
	m.ObserveWatchEvent("client")

	families := gather(t, reg)
	assert.InDelta(t, 3, families["unistack_reload_clients"].GetMetric()[0].GetGauge().GetValue(), 0)
	assert.InDelta(t, 2, families["unistack_reload_events_total"].GetMetric()[0].GetCounter().GetValue(), 0)
	assert.Equal(t, "client", labelValue(families["unistack_watch_events_total"].GetMetric()[0], "classification"))
}

func TestOrNop(t *testing.T) {
	m := OrNop(nil)
	require.NotNil(t, m)
	assert.NotPanics(t, func() { m.ObserveBuild("node", time.Millisecond, nil) })

	existing := Nop()
	assert.Same(t, existing, OrNop(existing))
}
