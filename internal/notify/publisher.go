// Package notify pushes stored notifications to the recipient's live session.
//
// Delivery is best effort and at most once. A recipient without a session, a
// closed session, or a send that outlives the timeout all leave the notification
// in the store for the next listing; none of them is reported to the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
)

const DefaultTimeout = 250 * time.Millisecond

// Envelope is the wire message pushed to clients.
type Envelope struct {
	Type         string              `json:"type"`
	Notification domain.Notification `json:"notification"`
}

const envelopeTypeNotification = "notification"

// Lookup is the part of the presence registry the publisher needs.
type Lookup interface {
	Lookup(userID string) (domain.SessionHandle, bool)
}

type Publisher struct {
	presence Lookup
	timeout  time.Duration
	metrics  *metrics.NotificationMetrics
}

var _ domain.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher. A non-positive timeout uses DefaultTimeout; m may be nil.
func NewPublisher(presence Lookup, timeout time.Duration, m *metrics.NotificationMetrics) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{presence: presence, timeout: timeout, metrics: m}
}

func Encode(n domain.Notification) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: envelopeTypeNotification, Notification: n})
	if err != nil {
		return nil, fmt.Errorf("marshal notification envelope: %w", err)
	}
	return data, nil
}

// Publish never returns an error and never blocks longer than the configured timeout.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) domain.DeliveryStatus {
	start := time.Now()
	status := p.publish(ctx, n)
	if p.metrics != nil {
		p.metrics.Deliveries.WithLabelValues(status.String()).Inc()
		if status != domain.DeliveryAbsent {
			p.metrics.PublishDuration.Observe(time.Since(start).Seconds())
		}
	}
	return status
}

func (p *Publisher) publish(ctx context.Context, n domain.Notification) domain.DeliveryStatus {
	handle, ok := p.presence.Lookup(n.RecipientID)
	if !ok {
		return domain.DeliveryAbsent
	}

	payload, err := Encode(n)
	if err != nil {
		p.logFailure(ctx, n, handle, err)
		return domain.DeliveryFailed
	}

	// The notification is already stored; a cancelled request must not abort its push.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handle.Send(sendCtx, payload)
	}()

	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = fmt.Errorf("send timed out after %s: %w", p.timeout, sendCtx.Err())
	}

	if err != nil {
		p.logFailure(ctx, n, handle, err)
		return domain.DeliveryFailed
	}
	return domain.DeliveryDelivered
}

func (p *Publisher) logFailure(ctx context.Context, n domain.Notification, handle domain.SessionHandle, err error) {
	slog.WarnContext(ctx, "Realtime notification delivery failed",
		"notification_id", n.ID,
		"recipient_id", n.RecipientID,
		"session_id", handle.ID(),
		"error", fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err))
}
