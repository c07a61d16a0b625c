// Package metrics exposes point database and channel activity as
// Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telecore/telecore-go/pkg/channel"
	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/point"
)

const namespace = "telecore"

// Frame decode results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var reasons = []point.Reason{
	point.ReasonValueChanged,
	point.ReasonOnlineChanged,
	point.ReasonLatchSet,
}

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	updates *prometheus.CounterVec
	events  *prometheus.CounterVec
	opens   *prometheus.CounterVec
	frames  *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Point updates applied to the database",
		}, []string{"type"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Reportable point events, by reason",
		}, []string{"type", "reason"}),
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_open_total",
			Help:      "Channel open attempts",
		}, []string{"kind", "result"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames received, by decode result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.updates,
		m.events,
		m.opens,
		m.frames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WatchDatabase registers a points{type} gauge per table, read from db at
// scrape time.
func (m *Metrics) WatchDatabase(db *database.Database) error {
	for _, t := range point.Types {
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "points",
			Help:        "Points held per table",
			ConstLabels: prometheus.Labels{"type": t.String()},
		}, func() float64 { return float64(db.Count(t)) })
		if err := m.registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// ObserveUpdate counts one applied update.
func (m *Metrics) ObserveUpdate(t point.Type) {
	m.updates.WithLabelValues(t.String()).Inc()
}

// ObserveEvent counts an event once per reason it carries.
func (m *Metrics) ObserveEvent(e database.Event) {
	for _, r := range reasons {
		if e.Outcome.Reasons&r != 0 {
			m.events.WithLabelValues(e.Type.String(), strings.ToLower(r.String())).Inc()
		}
	}
}

// ObserveOpen counts an open attempt. Its signature matches
// transport.DispatcherConfig.OnOpen.
func (m *Metrics) ObserveOpen(cfg channel.Config, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.opens.WithLabelValues(cfg.Kind().String(), result).Inc()
}

// ObserveFrame counts a received frame.
func (m *Metrics) ObserveFrame(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.frames.WithLabelValues(result).Inc()
}
