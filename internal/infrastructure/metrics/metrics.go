// Package metrics exposes Prometheus counters for workflow events and HTTP traffic.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/discussion-review/internal/application/dispatcher"
	"github.com/garyjia/discussion-review/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "discussion_review"

// Metrics owns a private registry so tests and multiple servers do not collide
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	reworkFlags      *prometheus.CounterVec
	retroCorrections *prometheus.CounterVec
	reconcileUpdates prometheus.Counter
	reconcileErrors  prometheus.Counter
	imported         prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events published after commit.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_status_transitions_total",
			Help:      "Task status changes by task and new status.",
		}, []string{"task", "status"}),
		reworkFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rework_flags_total",
			Help:      "Tasks flagged for rework by workflow scenario.",
		}, []string{"scenario"}),
		retroCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retroactive_corrections_total",
			Help:      "Task 2 corrections applied from task 3 consensus.",
		}, []string{"task2_passed"}),
		reconcileUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_updates_total",
			Help:      "Status updates written by reconciliation passes.",
		}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_errors_total",
			Help:      "Discussions that failed during reconciliation passes.",
		}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussions_imported_total",
			Help:      "Discussions created by imports.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.transitions,
		m.reworkFlags,
		m.retroCorrections,
		m.reconcileUpdates,
		m.reconcileErrors,
		m.imported,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Register subscribes the event observer to every event type
func (m *Metrics) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll("metrics", m.Observe)
}

// Observe counts one published event
func (m *Metrics) Observe(ctx context.Context, evt *event.Event) error {
	m.events.WithLabelValues(evt.Type.String()).Inc()

	switch evt.Type {
	case event.TypeTaskStatusChanged:
		m.transitions.WithLabelValues(strconv.Itoa(evt.TaskID), payloadString(evt, "new_status")).Inc()
	case event.TypeReworkFlagged:
		scenario := payloadString(evt, "workflow_scenario")
		if scenario == "" {
			scenario = "none"
		}
		m.reworkFlags.WithLabelValues(scenario).Inc()
	case event.TypeRetroactiveCorrection:
		passed, _ := evt.Payload["task2_passed"].(bool)
		m.retroCorrections.WithLabelValues(strconv.FormatBool(passed)).Inc()
	case event.TypeReconcileCompleted:
		m.reconcileUpdates.Add(payloadNumber(evt, "updates"))
		m.reconcileErrors.Add(payloadNumber(evt, "errors"))
	case event.TypeDiscussionsImported:
		m.imported.Add(payloadNumber(evt, "created"))
	}
	return nil
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func payloadString(evt *event.Event, key string) string {
	v, ok := evt.Payload[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func payloadNumber(evt *event.Event, key string) float64 {
	switch v := evt.Payload[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}
