// Package telemetry provides the monitor's own Prometheus metrics and the
// exposition of collected node metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sweep self-metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	SweepDuration        *prometheus.HistogramVec
	NodesCollected       *prometheus.CounterVec
	NodeFailures         *prometheus.CounterVec
	AlertsTriggered      *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	RetentionDeleted     prometheus.Counter
}

// NewMetrics creates the self-metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_sweep_duration_seconds",
				Help:    "Duration of collection, evaluation and retention sweeps",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"sweep"}, // collect, evaluate, retention
		),
		NodesCollected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_nodes_collected_total",
				Help: "Total number of node collections by node type and result",
			},
			[]string{"type", "result"},
		),
		NodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_node_failures_total",
				Help: "Total number of failed node collections by error kind",
			},
			[]string{"kind"},
		),
		AlertsTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_alerts_triggered_total",
				Help: "Total number of alert rule triggers by channel",
			},
			[]string{"channel"},
		),
		NotificationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_notification_failures_total",
				Help: "Total number of failed notification deliveries by channel",
			},
			[]string{"channel"},
		),
		RetentionDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_retention_deleted_total",
				Help: "Total number of metric samples deleted by retention",
			},
		),
	}
}

// ObserveSweep records the duration of one sweep.
func (m *Metrics) ObserveSweep(sweep string, d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}

// RecordNodeCollected records one node collection outcome. An empty kind
// means success.
func (m *Metrics) RecordNodeCollected(nodeType, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		m.NodesCollected.WithLabelValues(nodeType, "success").Inc()
		return
	}
	m.NodesCollected.WithLabelValues(nodeType, "failure").Inc()
	m.NodeFailures.WithLabelValues(kind).Inc()
}

// RecordAlertTriggered records one rule trigger.
func (m *Metrics) RecordAlertTriggered(channel string) {
	if m == nil {
		return
	}
	m.AlertsTriggered.WithLabelValues(channel).Inc()
}

// RecordNotificationFailure records one failed delivery.
func (m *Metrics) RecordNotificationFailure(channel string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(channel).Inc()
}

// RecordRetentionDeleted adds the number of samples removed by a cleanup.
func (m *Metrics) RecordRetentionDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RetentionDeleted.Add(float64(n))
}
