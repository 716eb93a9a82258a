package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/adapter/websocket"
)

func (s *Server) registerRealtimeRoutes() {
	if s.centrifugeHandler != nil {
		s.echo.GET("/connection/websocket", s.handleCentrifuge, identityMiddleware)
	}
	if s.stream != nil {
		s.echo.GET("/ws/notifications", s.handleNotificationStream, identityMiddleware)
	}
}

func (s *Server) handleCentrifuge(c echo.Context) error {
	ip := c.RealIP()
	if s.limits != nil {
		if ok, reason := s.limits.Acquire(ip); !ok {
			slog.WarnContext(c.Request().Context(), "WebSocket connection rejected", "reason", reason, "ip", ip)
			return c.String(http.StatusServiceUnavailable, "too many connections")
		}
		defer s.limits.Release(ip)
	}

	r := c.Request()
	r = r.WithContext(websocket.WithCredentials(r.Context(), currentUserID(c)))
	s.centrifugeHandler.ServeHTTP(c.Response(), r)
	return nil
}

func (s *Server) handleNotificationStream(c echo.Context) error {
	s.stream.Serve(c.Response(), c.Request(), currentUserID(c), c.RealIP())
	return nil
}
