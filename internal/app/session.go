package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/askpulse/internal/domain"
)

// SessionService connects transport session lifecycle events to presence.
type SessionService struct {
	presence domain.Presence
}

func NewSessionService(presence domain.Presence) *SessionService {
	return &SessionService{presence: presence}
}

// OnSessionStart registers handle as its user's live session, superseding any older one.
func (s *SessionService) OnSessionStart(ctx context.Context, handle domain.SessionHandle) {
	s.presence.Register(handle)
	slog.DebugContext(ctx, "Realtime session started", "user_id", handle.UserID(), "session_id", handle.ID())
}

// OnSessionEnd removes handle from presence unless a newer session already replaced it.
func (s *SessionService) OnSessionEnd(ctx context.Context, handle domain.SessionHandle) {
	removed := s.presence.Deregister(handle)
	slog.DebugContext(ctx, "Realtime session ended",
		"user_id", handle.UserID(),
		"session_id", handle.ID(),
		"was_current", removed)
}

// ActiveSessions reports how many users currently have a live session.
func (s *SessionService) ActiveSessions() int {
	return s.presence.Len()
}
