package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

// NotificationService serves a user's notification history and accepts
// notifications raised by collaborators outside the vote path.
type NotificationService struct {
	store    domain.NotificationStore
	entities domain.EntityRepository
	notifier *notifier
	clock    clockwork.Clock
}

func NewNotificationService(store domain.NotificationStore, entities domain.EntityRepository, publisher domain.Publisher, clock clockwork.Clock, m *metrics.NotificationMetrics) *NotificationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NotificationService{
		store:    store,
		entities: entities,
		notifier: &notifier{store: store, publisher: publisher, metrics: m},
		clock:    clock,
	}
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	list, err := s.store.ListForUser(ctx, userID, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}
	return list, nil
}

// MarkRead marks one of userID's notifications as read. Notifications of other
// users are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("get notification %s: %w", id, err)
	}
	if n.RecipientID != userID {
		return domain.ErrNotificationNotFound
	}
	if n.IsRead {
		return nil
	}
	if err := s.store.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read for %s: %w", userID, err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", userID, err)
	}
	return n, nil
}

// NotifyAnswerPosted tells the owner of question that answererID answered it.
// Answering one's own question is silent and returns ok=false.
func (s *NotificationService) NotifyAnswerPosted(ctx context.Context, question domain.EntityRef, answerID, answererID string) (domain.DeliveryStatus, bool, error) {
	if question.Kind != domain.KindQuestion {
		return domain.DeliveryAbsent, false, fmt.Errorf("%w: answers belong to questions, got %s", domain.ErrInvalidEntity, question.Kind)
	}
	answer := domain.EntityRef{Kind: domain.KindAnswer, ID: answerID}
	if err := answer.Validate(); err != nil {
		return domain.DeliveryAbsent, false, err
	}
	if strings.TrimSpace(answererID) == "" {
		return domain.DeliveryAbsent, false, domain.ErrInvalidUser
	}

	entity, err := s.entities.GetEntity(ctx, question)
	if err != nil {
		return domain.DeliveryAbsent, false, fmt.Errorf("load question %s: %w", question, err)
	}
	if entity.OwnerID == answererID {
		return domain.DeliveryAbsent, false, nil
	}

	return s.raise(ctx, &domain.Notification{
		RecipientID:     entity.OwnerID,
		Message:         fmt.Sprintf("%s answered your question", answererID),
		RelatedEntityID: answer.String(),
		Kind:            domain.NotificationAnswer,
	})
}

// NotifyMention tells recipientID that mentionerID mentioned them in relatedEntityID.
// Self-mentions are silent and return ok=false.
func (s *NotificationService) NotifyMention(ctx context.Context, recipientID, mentionerID, relatedEntityID string) (domain.DeliveryStatus, bool, error) {
	if strings.TrimSpace(recipientID) == "" || strings.TrimSpace(mentionerID) == "" {
		return domain.DeliveryAbsent, false, domain.ErrInvalidUser
	}
	if recipientID == mentionerID {
		return domain.DeliveryAbsent, false, nil
	}

	return s.raise(ctx, &domain.Notification{
		RecipientID:     recipientID,
		Message:         fmt.Sprintf("%s mentioned you", mentionerID),
		RelatedEntityID: relatedEntityID,
		Kind:            domain.NotificationMention,
	})
}

func (s *NotificationService) raise(ctx context.Context, note *domain.Notification) (domain.DeliveryStatus, bool, error) {
	note.CreatedAt = s.clock.Now().UTC()
	status, err := s.notifier.deliver(ctx, note)
	if err != nil {
		return status, false, err
	}
	return status, true, nil
}
