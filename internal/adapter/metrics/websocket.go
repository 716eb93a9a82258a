package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for realtime connections.
type WebSocketMetrics struct {
	ActiveConnections   *prometheus.GaugeVec
	ConnectionsRejected *prometheus.CounterVec
	MessagesSent        *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active realtime connections, by transport.",
		}, []string{"transport"}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_rejected_total",
			Help:      "Rejected connection attempts, by reason.",
		}, []string{"reason"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Messages written to realtime connections, by transport.",
		}, []string{"transport"}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectionsRejected, m.MessagesSent)
	return m
}
