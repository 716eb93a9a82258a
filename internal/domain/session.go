package domain

import "context"

// SessionHandle is a live realtime connection owned by the transport layer.
type SessionHandle interface {
	// ID identifies this connection. Two connections of the same user have different IDs.
	ID() string
	UserID() string
	// Send writes one payload to the client, honouring ctx for cancellation.
	Send(ctx context.Context, payload []byte) error
}

// DeliveryStatus is the outcome of a realtime publish attempt.
type DeliveryStatus int

const (
	DeliveryAbsent DeliveryStatus = iota
	DeliveryDelivered
	DeliveryFailed
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryDelivered:
		return "delivered"
	case DeliveryFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Publisher pushes a stored notification to its recipient's live session, if any.
type Publisher interface {
	Publish(ctx context.Context, n Notification) DeliveryStatus
}

// Presence tracks which users currently hold a live session.
type Presence interface {
	Register(handle SessionHandle)
	Lookup(userID string) (SessionHandle, bool)
	Deregister(handle SessionHandle) bool
	Len() int
}
