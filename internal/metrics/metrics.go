// Package metrics registers Prometheus metrics for the extension runtime
// and the surrounding host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Extension runtime metrics
	ExtensionsLoaded          prometheus.Gauge
	ExtensionState            *prometheus.GaugeVec
	LifecycleTransitionsTotal *prometheus.CounterVec
	LifecycleErrorsTotal      *prometheus.CounterVec

	// Hook dispatch metrics
	HookExecutionsTotal    *prometheus.CounterVec
	HookHandlerErrorsTotal *prometheus.CounterVec
	HookDuration           *prometheus.HistogramVec

	// Gateway event metrics
	GatewayEventsTotal *prometheus.CounterVec

	// Websocket metrics
	WebsocketClientsActive prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ExtensionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "extensions_loaded",
			Help: "Number of currently loaded extensions",
		}),
		ExtensionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "extension_state",
				Help: "Current lifecycle state per extension (1 for the active state)",
			},
			[]string{"extension", "state"},
		),
		LifecycleTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extension_lifecycle_transitions_total",
				Help: "Total lifecycle state transitions",
			},
			[]string{"extension", "to"},
		),
		LifecycleErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extension_lifecycle_errors_total",
				Help: "Total lifecycle callback failures",
			},
			[]string{"extension", "phase"},
		),
		HookExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hook_executions_total",
				Help: "Total hook dispatches by hook type",
			},
			[]string{"hook"},
		),
		HookHandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hook_handler_errors_total",
				Help: "Total isolated hook handler failures",
			},
			[]string{"hook", "extension"},
		),
		HookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hook_duration_seconds",
				Help:    "Duration of full hook dispatch by hook type",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hook"},
		),
		GatewayEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_events_total",
				Help: "Total Discord gateway events processed",
			},
			[]string{"event"},
		),
		WebsocketClientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_clients_active",
			Help: "Number of connected websocket clients",
		}),
	}

	registry.MustRegister(
		m.ExtensionsLoaded,
		m.ExtensionState,
		m.LifecycleTransitionsTotal,
		m.LifecycleErrorsTotal,
		m.HookExecutionsTotal,
		m.HookHandlerErrorsTotal,
		m.HookDuration,
		m.GatewayEventsTotal,
		m.WebsocketClientsActive,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetExtensionState records the current state for an extension, clearing
// previously set state labels for it.
func (m *Metrics) SetExtensionState(extension, state string) {
	m.ExtensionState.DeletePartialMatch(prometheus.Labels{"extension": extension})
	m.ExtensionState.WithLabelValues(extension, state).Set(1)
}

// ClearExtension removes all per-extension series after unload.
func (m *Metrics) ClearExtension(extension string) {
	m.ExtensionState.DeletePartialMatch(prometheus.Labels{"extension": extension})
}
