package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

// appendTimeout bounds the notification write once it is detached from the caller.
const appendTimeout = 5 * time.Second

// notifier stores a notification and then pushes it to the recipient's live session.
type notifier struct {
	store     domain.NotificationStore
	publisher domain.Publisher
	metrics   *metrics.NotificationMetrics
}

// deliver appends on a context detached from the caller's cancellation: the action
// that raised the notification is already committed when it runs.
func (n *notifier) deliver(ctx context.Context, note *domain.Notification) (domain.DeliveryStatus, error) {
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := n.store.Append(appendCtx, note); err != nil {
		if n.metrics != nil {
			n.metrics.AppendFailures.Inc()
		}
		return domain.DeliveryAbsent, fmt.Errorf("append notification for %s: %w", note.RecipientID, err)
	}
	if n.metrics != nil {
		n.metrics.Appended.WithLabelValues(string(note.Kind)).Inc()
	}
	return n.publisher.Publish(ctx, *note), nil
}
