package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

const maxInboundMessageSize = 512

// SessionLifecycle receives session start and end events from both transports.
type SessionLifecycle interface {
	OnSessionStart(ctx context.Context, handle domain.SessionHandle)
	OnSessionEnd(ctx context.Context, handle domain.SessionHandle)
}

// NotificationStream serves /ws/notifications: a plain WebSocket that only
// receives pushed notification envelopes. Inbound frames are read and
// discarded to keep the connection alive.
type NotificationStream struct {
	sessions SessionLifecycle
	limits   *ConnectionLimits
	clock    clockwork.Clock
	metrics  *metrics.WebSocketMetrics
	upgrader websocket.Upgrader
}

func NewNotificationStream(sessions SessionLifecycle, limits *ConnectionLimits, checkOrigin func(*http.Request) bool, clock clockwork.Clock, m *metrics.WebSocketMetrics) *NotificationStream {
	return &NotificationStream{
		sessions: sessions,
		limits:   limits,
		clock:    clock,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve upgrades the request and blocks until the connection ends.
// userID must already be authenticated.
func (s *NotificationStream) Serve(w http.ResponseWriter, r *http.Request, userID, clientIP string) {
	if s.limits != nil {
		if ok, reason := s.limits.Acquire(clientIP); !ok {
			slog.WarnContext(r.Context(), "WebSocket connection rejected", "reason", reason, "ip", clientIP)
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}
		defer s.limits.Release(clientIP)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.DebugContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	writer := newClientWriter(uuid.Must(uuid.NewV7()).String(), userID, conn, s.clock, s.metrics)

	s.connectionOpened()
	defer s.connectionClosed()

	s.sessions.OnSessionStart(ctx, writer)
	defer s.sessions.OnSessionEnd(ctx, writer)

	s.readUntilClosed(conn, writer)
	writer.stop("session ended")
}

func (s *NotificationStream) readUntilClosed(conn *websocket.Conn, writer *clientWriter) {
	conn.SetReadLimit(maxInboundMessageSize)

	errs := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errs <- err
				return
			}
			writer.updateReadDeadline()
			writer.recordActivity()
		}
	}()

	select {
	case err := <-errs:
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			slog.Debug("WebSocket read failed", "user_id", writer.UserID(), "error", err)
		}
	case <-writer.done():
		// Unblock the reader; the writer has already given up on the connection.
		_ = conn.Close()
		<-errs
	}
}

func (s *NotificationStream) connectionOpened() {
	if s.metrics != nil {
		s.metrics.ActiveConnections.WithLabelValues(transportWebSocket).Inc()
	}
}

func (s *NotificationStream) connectionClosed() {
	if s.metrics != nil {
		s.metrics.ActiveConnections.WithLabelValues(transportWebSocket).Dec()
	}
}
