package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationAnswer  NotificationKind = "answer"
	NotificationReview  NotificationKind = "review"
	NotificationMention NotificationKind = "mention"
)

func ParseNotificationKind(s string) (NotificationKind, error) {
	switch k := NotificationKind(s); k {
	case NotificationAnswer, NotificationReview, NotificationMention:
		return k, nil
	default:
		return "", fmt.Errorf("unknown notification kind %q", s)
	}
}

// Notification is an immutable record except for IsRead.
// Seq is assigned by the store and orders notifications by creation.
type Notification struct {
	ID              uuid.UUID        `json:"id"`
	Seq             int64            `json:"seq"`
	RecipientID     string           `json:"recipient_id"`
	Message         string           `json:"message"`
	RelatedEntityID string           `json:"related_entity_id"`
	Kind            NotificationKind `json:"kind"`
	IsRead          bool             `json:"is_read"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NotificationFilter narrows ListForUser. Before is an exclusive Seq cursor; zero means from the newest.
type NotificationFilter struct {
	Limit      int
	Before     int64
	UnreadOnly bool
	Kind       NotificationKind
}

const (
	DefaultNotificationPageSize = 20
	MaxNotificationPageSize     = 100
)

// Normalize clamps Limit into [1, MaxNotificationPageSize].
func (f NotificationFilter) Normalize() NotificationFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultNotificationPageSize
	case f.Limit > MaxNotificationPageSize:
		f.Limit = MaxNotificationPageSize
	}
	if f.Before < 0 {
		f.Before = 0
	}
	return f
}

// NotificationStore is the durable record of every notification.
type NotificationStore interface {
	// Append assigns ID and CreatedAt when unset and always assigns Seq.
	Append(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error)
	// MarkRead is idempotent and returns ErrNotificationNotFound for unknown ids.
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	// ListForUser returns notifications newest first.
	ListForUser(ctx context.Context, recipientID string, filter NotificationFilter) ([]Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}
