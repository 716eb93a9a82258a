package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware(s.httpMetrics))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		ReferrerPolicy:     "no-referrer",
	}))

	s.registerHealthRoutes()
	s.registerAPIRoutes()
	s.registerRealtimeRoutes()
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", identityMiddleware, newRateLimiter(s.config.HTTPRateLimit, s.config.HTTPRateBurst))

	entities := api.Group("/entities/:kind/:id")
	entities.PUT("", s.handleRegisterEntity)
	entities.DELETE("", s.handleDeleteEntity)
	entities.POST("/votes", s.handleVote)
	entities.GET("/score", s.handleScore)

	notifications := api.Group("/notifications")
	notifications.GET("", s.handleListNotifications)
	notifications.GET("/unread-count", s.handleUnreadCount)
	notifications.POST("/read-all", s.handleMarkAllRead)
	notifications.POST("/:id/read", s.handleMarkRead)

	events := api.Group("/events")
	events.POST("/answer-posted", s.handleAnswerPosted)
	events.POST("/mention", s.handleMention)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
