// Package metrics exposes logger and notifier counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maillog/internal/eventbus"
	"maillog/internal/maillogger"
	"maillog/internal/severity"
)

// Metrics is a maillogger.Observer backed by its own registry.
type Metrics struct {
	reg *prometheus.Registry

	events          *prometheus.CounterVec
	truncations     prometheus.Counter
	dispatches      *prometheus.CounterVec
	dispatchedItems *prometheus.CounterVec
	notifier        *prometheus.CounterVec
}

var _ maillogger.Observer = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maillog_events_total",
			Help: "Log events by level and outcome (accepted, filtered, discarded).",
		}, []string{"level", "outcome"}),
		truncations: f.NewCounter(prometheus.CounterOpts{
			Name: "maillog_truncations_total",
			Help: "Cycles that reached the event cap.",
		}),
		dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maillog_dispatches_total",
			Help: "Messages handed to the transport, by kind and status.",
		}, []string{"kind", "status"}),
		dispatchedItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maillog_dispatched_events_total",
			Help: "Events carried by dispatched messages.",
		}, []string{"kind"}),
		notifier: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maillog_notifier_events_total",
			Help: "Async notifier pipeline events by type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Accepted(level severity.Severity) {
	m.events.WithLabelValues(level.String(), "accepted").Inc()
}

func (m *Metrics) Filtered(level severity.Severity) {
	m.events.WithLabelValues(level.String(), "filtered").Inc()
}

func (m *Metrics) Discarded(level severity.Severity) {
	m.events.WithLabelValues(level.String(), "discarded").Inc()
}

func (m *Metrics) Truncated() { m.truncations.Inc() }

func (m *Metrics) Dispatched(kind maillogger.Kind, events int, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.dispatches.WithLabelValues(string(kind), status).Inc()
	m.dispatchedItems.WithLabelValues(string(kind)).Add(float64(events))
}

// WatchBus counts notifier events from bus until ctx ends.
func (m *Metrics) WatchBus(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if strings.HasPrefix(ev.Type, "notify.") {
				m.notifier.WithLabelValues(strings.TrimPrefix(ev.Type, "notify.")).Inc()
			}
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
