package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/domain"
)

type notificationPos struct {
	recipient string
	index     int
}

// NotificationStore keeps one append-only slice per recipient, ordered by Seq.
type NotificationStore struct {
	clock clockwork.Clock

	mu     sync.RWMutex
	seq    int64
	byUser map[string][]domain.Notification
	byID   map[uuid.UUID]notificationPos
}

var _ domain.NotificationStore = (*NotificationStore)(nil)

func NewNotificationStore(clock clockwork.Clock) *NotificationStore {
	return &NotificationStore{
		clock:  clock,
		byUser: make(map[string][]domain.Notification),
		byID:   make(map[uuid.UUID]notificationPos),
	}
}

func (s *NotificationStore) Append(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock.Now().UTC()
	}
	s.seq++
	n.Seq = s.seq

	list := s.byUser[n.RecipientID]
	s.byID[n.ID] = notificationPos{recipient: n.RecipientID, index: len(list)}
	s.byUser[n.RecipientID] = append(list, *n)
	return nil
}

func (s *NotificationStore) GetNotification(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	n := s.byUser[pos.recipient][pos.index]
	return &n, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.byID[id]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	s.byUser[pos.recipient][pos.index].IsRead = true
	return nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	list := s.byUser[recipientID]
	for i := range list {
		if !list[i].IsRead {
			list[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *NotificationStore) ListForUser(_ context.Context, recipientID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byUser[recipientID]
	out := make([]domain.Notification, 0, min(filter.Limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		n := list[i]
		if filter.Before > 0 && n.Seq >= filter.Before {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, item := range s.byUser[recipientID] {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}
