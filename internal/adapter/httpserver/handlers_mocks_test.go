package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/domain"
	"github.com/pscheid92/askpulse/internal/platform/config"
)

// --- Mock implementations ---

type mockVoteService struct {
	voteFn           func(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error)
	scoreFn          func(ctx context.Context, ref domain.EntityRef) (int, error)
	registerEntityFn func(ctx context.Context, entity domain.Entity) error
	deleteEntityFn   func(ctx context.Context, ref domain.EntityRef) error
}

func (m *mockVoteService) Vote(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, ref, voterID, polarity)
	}
	return domain.VoteResult{}, errors.New("not implemented")
}

func (m *mockVoteService) Score(ctx context.Context, ref domain.EntityRef) (int, error) {
	if m.scoreFn != nil {
		return m.scoreFn(ctx, ref)
	}
	return 0, domain.ErrEntityNotFound
}

func (m *mockVoteService) RegisterEntity(ctx context.Context, entity domain.Entity) error {
	if m.registerEntityFn != nil {
		return m.registerEntityFn(ctx, entity)
	}
	return nil
}

func (m *mockVoteService) DeleteEntity(ctx context.Context, ref domain.EntityRef) error {
	if m.deleteEntityFn != nil {
		return m.deleteEntityFn(ctx, ref)
	}
	return nil
}

type mockNotificationService struct {
	listFn               func(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	markReadFn           func(ctx context.Context, userID string, id uuid.UUID) error
	markAllReadFn        func(ctx context.Context, userID string) (int64, error)
	unreadCountFn        func(ctx context.Context, userID string) (int64, error)
	notifyAnswerPostedFn func(ctx context.Context, question domain.EntityRef, answerID, answererID string) (domain.DeliveryStatus, bool, error)
	notifyMentionFn      func(ctx context.Context, recipientID, mentionerID, relatedEntityID string) (domain.DeliveryStatus, bool, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, userID, id)
	}
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.markAllReadFn != nil {
		return m.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if m.unreadCountFn != nil {
		return m.unreadCountFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationService) NotifyAnswerPosted(ctx context.Context, question domain.EntityRef, answerID, answererID string) (domain.DeliveryStatus, bool, error) {
	if m.notifyAnswerPostedFn != nil {
		return m.notifyAnswerPostedFn(ctx, question, answerID, answererID)
	}
	return domain.DeliveryAbsent, false, nil
}

func (m *mockNotificationService) NotifyMention(ctx context.Context, recipientID, mentionerID, relatedEntityID string) (domain.DeliveryStatus, bool, error) {
	if m.notifyMentionFn != nil {
		return m.notifyMentionFn(ctx, recipientID, mentionerID, relatedEntityID)
	}
	return domain.DeliveryAbsent, false, nil
}

// --- Test server helpers ---

type testServerOption func(*Deps)

func withVotes(v voteService) testServerOption {
	return func(d *Deps) { d.Votes = v }
}

func withNotifications(n notificationService) testServerOption {
	return func(d *Deps) { d.Notifications = n }
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(d *Deps) { d.HealthChecks = checks }
}

func withSessions(sc sessionCounter) testServerOption {
	return func(d *Deps) { d.Sessions = sc }
}

type fixedSessions int

func (f fixedSessions) ActiveSessions() int { return int(f) }

func withMetricsHandler(h http.Handler) testServerOption {
	return func(d *Deps) { d.MetricsHandler = h }
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:        "development",
		AppURL:        "http://localhost:8080",
		Port:          "8080",
		HTTPRateLimit: 1000,
		HTTPRateBurst: 1000,
	}
}

func newTestServer(t *testing.T, opts ...testServerOption) *Server {
	t.Helper()
	deps := Deps{
		Votes:         &mockVoteService{},
		Notifications: &mockNotificationService{},
		Clock:         clockwork.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewServer(newTestConfig(), deps)
}

// do sends a request through the full middleware stack. An empty userID
// omits the identity header.
func do(t *testing.T, srv *Server, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
