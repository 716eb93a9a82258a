package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	idleTimeout       = 5 * time.Minute
	messageBufferSize = 16

	transportWebSocket = "websocket"
)

// clientWriter owns all writes to one gorilla connection and doubles as the
// connection's domain.SessionHandle.
type clientWriter struct {
	id      string
	userID  string
	conn    *websocket.Conn
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics

	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	activityMutex sync.Mutex
	lastActivity  time.Time
}

var _ domain.SessionHandle = (*clientWriter)(nil)

func newClientWriter(id, userID string, conn *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics) *clientWriter {
	cw := &clientWriter{
		id:           id,
		userID:       userID,
		conn:         conn,
		clock:        clock,
		metrics:      m,
		sendChannel:  make(chan []byte, messageBufferSize),
		doneChannel:  make(chan struct{}),
		lastActivity: clock.Now(),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) ID() string     { return cw.id }
func (cw *clientWriter) UserID() string { return cw.userID }

// Send queues payload for the writer goroutine. A full buffer blocks until
// ctx ends, so a slow client costs the caller at most its deadline.
func (cw *clientWriter) Send(ctx context.Context, payload []byte) error {
	select {
	case <-cw.doneChannel:
		return domain.ErrSessionClosed
	default:
	}

	select {
	case cw.sendChannel <- payload:
		return nil
	case <-cw.doneChannel:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return fmt.Errorf("send buffer full: %w", ctx.Err())
	}
}

// done is closed once the writer stops for any reason.
func (cw *clientWriter) done() <-chan struct{} {
	return cw.doneChannel
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()
	defer cw.signalDone()

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			if cw.metrics != nil {
				cw.metrics.MessagesSent.WithLabelValues(transportWebSocket).Inc()
			}
		case <-ticker.Chan():
			if cw.idle() {
				return
			}
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) signalDone() {
	cw.stopOnce.Do(func() { close(cw.doneChannel) })
}

// stop sends a close frame with reason and closes the connection.
func (cw *clientWriter) stop(reason string) {
	cw.signalDone()
	cw.wg.Wait()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	cw.updateWriteDeadline()
	_ = cw.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	_ = cw.conn.Close()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.conn.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		cw.recordActivity()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}

func (cw *clientWriter) recordActivity() {
	cw.activityMutex.Lock()
	defer cw.activityMutex.Unlock()
	cw.lastActivity = cw.clock.Now()
}

func (cw *clientWriter) idle() bool {
	cw.activityMutex.Lock()
	defer cw.activityMutex.Unlock()
	return cw.clock.Since(cw.lastActivity) >= idleTimeout
}
