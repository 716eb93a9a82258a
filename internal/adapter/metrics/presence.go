package metrics

import "github.com/prometheus/client_golang/prometheus"

// PresenceMetrics holds Prometheus metrics for the presence registry.
type PresenceMetrics struct {
	ActiveSessions       prometheus.Gauge
	SupersededSessions   prometheus.Counter
	StaleDeregistrations prometheus.Counter
}

// NewPresenceMetrics creates and registers presence metrics on the given registry.
func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	m := &PresenceMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "active_sessions",
			Help:      "Users with a registered live session.",
		}),
		SupersededSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "superseded_sessions_total",
			Help:      "Registrations that replaced an existing session of the same user.",
		}),
		StaleDeregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "stale_deregistrations_total",
			Help:      "Deregistrations ignored because a newer session had taken over.",
		}),
	}

	reg.MustRegister(m.ActiveSessions, m.SupersededSessions, m.StaleDeregistrations)
	return m
}
