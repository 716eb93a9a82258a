package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics holds Prometheus metrics for notification storage and realtime delivery.
type NotificationMetrics struct {
	Appended        *prometheus.CounterVec
	AppendFailures  prometheus.Counter
	Deliveries      *prometheus.CounterVec
	PublishDuration prometheus.Histogram
}

// NewNotificationMetrics creates and registers notification metrics on the given registry.
func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		Appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "appended_total",
			Help:      "Total notifications stored, by kind.",
		}, []string{"kind"}),
		AppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "append_failures_total",
			Help:      "Total notifications that could not be stored.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Realtime delivery attempts, by status (delivered, absent, failed).",
		}, []string{"status"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "publish_duration_seconds",
			Help:      "Time spent pushing a notification to a live session.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}

	reg.MustRegister(m.Appended, m.AppendFailures, m.Deliveries, m.PublishDuration)
	return m
}
