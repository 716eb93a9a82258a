package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/adapter/websocket"
	"github.com/pscheid92/askpulse/internal/domain"
	"github.com/pscheid92/askpulse/internal/platform/config"
)

type voteService interface {
	Vote(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error)
	Score(ctx context.Context, ref domain.EntityRef) (int, error)
	RegisterEntity(ctx context.Context, entity domain.Entity) error
	DeleteEntity(ctx context.Context, ref domain.EntityRef) error
}

type notificationService interface {
	List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	NotifyAnswerPosted(ctx context.Context, question domain.EntityRef, answerID, answererID string) (domain.DeliveryStatus, bool, error)
	NotifyMention(ctx context.Context, recipientID, mentionerID, relatedEntityID string) (domain.DeliveryStatus, bool, error)
}

type sessionCounter interface {
	ActiveSessions() int
}

// Deps are the collaborators of Server. Realtime handlers, Limits, Sessions, Metrics and
// MetricsHandler may be nil; the matching routes or fields are then left out.
type Deps struct {
	Votes         voteService
	Notifications notificationService

	CentrifugeHandler http.Handler
	Stream            *websocket.NotificationStream
	Limits            *websocket.ConnectionLimits
	Sessions          sessionCounter

	HealthChecks   []HealthCheck
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	votes         voteService
	notifications notificationService

	centrifugeHandler http.Handler
	stream            *websocket.NotificationStream
	limits            *websocket.ConnectionLimits
	sessions          sessionCounter

	healthChecks   []HealthCheck
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	clock          clockwork.Clock
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:              e,
		config:            cfg,
		votes:             deps.Votes,
		notifications:     deps.Notifications,
		centrifugeHandler: deps.CentrifugeHandler,
		stream:            deps.Stream,
		limits:            deps.Limits,
		sessions:          deps.Sessions,
		healthChecks:      deps.HealthChecks,
		httpMetrics:       deps.HTTPMetrics,
		metricsHandler:    deps.MetricsHandler,
		clock:             clock,
		startTime:         clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
