package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

type recordingLifecycle struct {
	mu      sync.Mutex
	started []domain.SessionHandle
	ended   []domain.SessionHandle
}

func (l *recordingLifecycle) OnSessionStart(_ context.Context, h domain.SessionHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, h)
}

func (l *recordingLifecycle) OnSessionEnd(_ context.Context, h domain.SessionHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, h)
}

func (l *recordingLifecycle) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started), len(l.ended)
}

func (l *recordingLifecycle) first() domain.SessionHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started[0]
}

func newStreamServer(t *testing.T, lifecycle SessionLifecycle, limits *ConnectionLimits, m *metrics.WebSocketMetrics) *httptest.Server {
	t.Helper()
	stream := NewNotificationStream(lifecycle, limits, NewCheckOrigin("http://localhost", true), clockwork.NewRealClock(), m)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.Serve(w, r, r.Header.Get("X-User-ID"), "10.0.0.1")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": []string{userID}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	return conn
}

func TestNotificationStream_DeliversSentPayloads(t *testing.T) {
	lifecycle := &recordingLifecycle{}
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	srv := newStreamServer(t, lifecycle, nil, m)

	conn := dial(t, srv, "u2")
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		started, _ := lifecycle.counts()
		return started == 1
	}, time.Second, 5*time.Millisecond)

	handle := lifecycle.first()
	assert.Equal(t, "u2", handle.UserID())
	assert.NotEmpty(t, handle.ID())

	require.NoError(t, handle.Send(context.Background(), []byte(`{"type":"notification"}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"notification"}`, string(msg))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.MessagesSent.WithLabelValues(transportWebSocket)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationStream_ClientCloseEndsSession(t *testing.T) {
	lifecycle := &recordingLifecycle{}
	srv := newStreamServer(t, lifecycle, nil, nil)

	conn := dial(t, srv, "u2")
	require.Eventually(t, func() bool {
		started, _ := lifecycle.counts()
		return started == 1
	}, time.Second, 5*time.Millisecond)

	handle := lifecycle.first()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()

	require.Eventually(t, func() bool {
		_, ended := lifecycle.counts()
		return ended == 1
	}, time.Second, 5*time.Millisecond)

	err := handle.Send(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestNotificationStream_RejectsOverLimit(t *testing.T) {
	lifecycle := &recordingLifecycle{}
	limits := NewConnectionLimits(clockwork.NewRealClock(), nil, 1, 10, 100, 100)
	srv := newStreamServer(t, lifecycle, limits, nil)

	conn := dial(t, srv, "u2")
	defer func() { _ = conn.Close() }()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientWriter_SendHonoursContextWhenBufferFull(t *testing.T) {
	cw := &clientWriter{
		sendChannel: make(chan []byte, 1),
		doneChannel: make(chan struct{}),
	}
	require.NoError(t, cw.Send(context.Background(), []byte("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := cw.Send(ctx, []byte("b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cw.signalDone()
	assert.ErrorIs(t, cw.Send(context.Background(), []byte("c")), domain.ErrSessionClosed)
}
