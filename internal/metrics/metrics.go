// Package metrics holds the Prometheus collectors of the node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricPrefix = "homenode_"

// Metrics groups every collector on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	NotificationsEmitted    *prometheus.CounterVec
	NotificationsSuppressed *prometheus.CounterVec
	Transitions             *prometheus.CounterVec
	OperationErrors         *prometheus.CounterVec
	SensorFaults            *prometheus.CounterVec
	RejectedCommands        *prometheus.CounterVec
	Sensor                  *prometheus.GaugeVec
	ActuatorOn              *prometheus.GaugeVec
	RemoteConnected         prometheus.Gauge
	TickDuration            prometheus.Histogram
}

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		NotificationsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_emitted_total",
				Help: "Notifications that passed the rate limiter, by kind",
			},
			[]string{"kind"},
		),
		NotificationsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_suppressed_total",
				Help: "Notifications dropped by the rate limiter, by kind and rule",
			},
			[]string{"kind", "reason"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actuator_transitions_total",
				Help: "Actuator output or mode changes, by actuator and source",
			},
			[]string{"actuator", "source"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operation_errors_total",
				Help: "Failed datastore and hardware operations, by operation",
			},
			[]string{"op"},
		),
		SensorFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sensor_faults_total",
				Help: "Rejected or unavailable sensor readings, by kind",
			},
			[]string{"kind"},
		),
		RejectedCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "remote_commands_rejected_total",
				Help: "Dashboard commands not applied, by field and reason",
			},
			[]string{"field", "reason"},
		),
		Sensor: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensor_value",
				Help: "Last good sensor reading, by kind",
			},
			[]string{"kind"},
		),
		ActuatorOn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "actuator_on",
				Help: "Desired actuator output (1 = on), by actuator",
			},
			[]string{"actuator"},
		),
		RemoteConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "remote_connected",
			Help: "Whether the remote datastore is reachable (1 = connected)",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "tick_duration_seconds",
			Help:    "Wall time spent in one control loop tick",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	m.Registry.MustRegister(
		m.NotificationsEmitted,
		m.NotificationsSuppressed,
		m.Transitions,
		m.OperationErrors,
		m.SensorFaults,
		m.RejectedCommands,
		m.Sensor,
		m.ActuatorOn,
		m.RemoteConnected,
		m.TickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
