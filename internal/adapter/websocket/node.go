package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/centrifugal/centrifuge"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

const transportCentrifuge = "centrifuge"

// NewNode creates a centrifuge node whose client connections become realtime
// sessions. Notifications travel as asynchronous client messages, so no
// channels are involved.
func NewNode(sessions SessionLifecycle, wsMetrics *metrics.WebSocketMetrics, logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting)
	node.OnConnect(onConnect(sessions, wsMetrics))

	return node, nil
}

// NewCentrifugeHandler returns the WebSocket handler for the node. Requests
// must carry credentials set by WithCredentials.
func NewCentrifugeHandler(node *centrifuge.Node, checkOrigin func(*http.Request) bool) http.Handler {
	return centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{CheckOrigin: checkOrigin})
}

// WithCredentials attaches the authenticated user to ctx for the centrifuge handler.
func WithCredentials(ctx context.Context, userID string) context.Context {
	return centrifuge.SetCredentials(ctx, &centrifuge.Credentials{UserID: userID})
}

func onConnecting(ctx context.Context, _ centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	cred, ok := centrifuge.GetCredentials(ctx)
	if !ok || cred.UserID == "" {
		return centrifuge.ConnectReply{}, centrifuge.DisconnectInvalidToken
	}
	return centrifuge.ConnectReply{}, nil
}

func onConnect(sessions SessionLifecycle, wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		handle := &centrifugeSession{client: client}
		ctx := context.WithoutCancel(client.Context())

		if wsMetrics != nil {
			wsMetrics.ActiveConnections.WithLabelValues(transportCentrifuge).Inc()
		}
		sessions.OnSessionStart(ctx, handle)

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			sessions.OnSessionEnd(ctx, handle)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.WithLabelValues(transportCentrifuge).Dec()
			}
		})
	}
}

// centrifugeSession adapts a centrifuge client to domain.SessionHandle.
type centrifugeSession struct {
	client *centrifuge.Client
}

func (s *centrifugeSession) ID() string     { return s.client.ID() }
func (s *centrifugeSession) UserID() string { return s.client.UserID() }

// Send enqueues payload on the client's outgoing queue; it does not block on the network.
func (s *centrifugeSession) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Send(payload); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSessionClosed, err)
	}
	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelTrace, centrifuge.LogLevelDebug:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}
